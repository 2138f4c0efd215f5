package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-demo-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// lockSession loads the session row inside tx. On Postgres the row is held
// FOR UPDATE until tx ends, which serializes every booking for the session.
// SQLite has no row locks; its write transaction already excludes other writers.
func lockSession(ctx context.Context, tx bun.IDB, id string) (*models.Session, error) {
	var session models.Session
	q := tx.NewSelect().
		Model(&session).
		Where("ds.id = ?", id).
		Limit(1)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func countTickets(ctx context.Context, db bun.IDB, sessionID string) (int, error) {
	return db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("session_id = ?", sessionID).
		Count(ctx)
}

// FindSession returns the session with the given id or ErrNotFound.
func (d *DB) FindSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := d.Bun.NewSelect().
		Model(&session).
		Where("ds.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// GetSessionDetail returns the session together with its tickets and their attendees.
func (d *DB) GetSessionDetail(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := d.Bun.NewSelect().
		Model(&session).
		Relation("Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Attendee").Order("t.created_at ASC")
		}).
		Where("ds.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	session.TicketCount = len(session.Tickets)
	return &session, nil
}

// ListSessions returns every session ordered by date, with tickets attached.
func (d *DB) ListSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := d.Bun.NewSelect().
		Model(&sessions).
		Relation("Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Attendee")
		}).
		Order("ds.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].TicketCount = len(sessions[i].Tickets)
	}
	return sessions, nil
}

func (d *DB) CreateSession(ctx context.Context, session *models.Session) error {
	if session.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", session.Capacity)
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(session).Exec(ctx)
	return err
}

// SessionUpdate carries the optional fields of an admin session edit.
type SessionUpdate struct {
	Date     *time.Time
	Capacity *int
}

func (d *DB) UpdateSession(ctx context.Context, id string, upd SessionUpdate) (*models.Session, error) {
	var session *models.Session
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		session, err = lockSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if upd.Date != nil {
			session.Date = *upd.Date
		}
		if upd.Capacity != nil {
			if *upd.Capacity <= 0 {
				return fmt.Errorf("capacity must be positive, got %d", *upd.Capacity)
			}
			session.Capacity = *upd.Capacity
		}
		session.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().
			Model(session).
			Column("date", "capacity", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session that owns no tickets. A session with at
// least one ticket yields ErrConflict and is left untouched.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockSession(ctx, tx, id); err != nil {
			return err
		}
		n, err := countTickets(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("session %s owns %d tickets: %w", id, n, ErrConflict)
		}
		_, err = tx.NewDelete().
			Model((*models.Session)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}
