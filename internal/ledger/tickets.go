package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-demo-booking/internal/models"
)

// checkCapacity re-counts the session's tickets inside tx. The session row
// must already be locked by the caller.
func checkCapacity(ctx context.Context, tx bun.IDB, session *models.Session) error {
	issued, err := countTickets(ctx, tx, session.ID)
	if err != nil {
		return err
	}
	if session.IsFull(issued) {
		return fmt.Errorf("session %s has %d/%d tickets: %w", session.ID, issued, session.Capacity, ErrCapacityExceeded)
	}
	return nil
}

func insertTicket(ctx context.Context, tx bun.IDB, ticket *models.Ticket) error {
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = models.TicketCreated
	}
	_, err := tx.NewInsert().Model(ticket).Exec(ctx)
	return err
}

// CountTicketsForSession is the capacity gate's input: the live ticket count.
func (d *DB) CountTicketsForSession(ctx context.Context, sessionID string) (int, error) {
	return countTickets(ctx, d.Bun, sessionID)
}

// CreateTicket inserts ticket for an existing attendee, failing with
// ErrCapacityExceeded when the session is already full.
func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := lockSession(ctx, tx, ticket.SessionID)
		if err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, session); err != nil {
			return err
		}
		return insertTicket(ctx, tx, ticket)
	})
}

// IssueParams identifies who is booking which session.
type IssueParams struct {
	SessionID string
	Email     string
	Name      string
	Phone     *string
}

// MintFunc builds the ticket row once the session and attendee are known.
type MintFunc func(session *models.Session, attendee *models.Attendee) (*models.Ticket, error)

// IssueTicket resolves the attendee and inserts the minted ticket in one
// transaction. When the capacity gate rejects the booking nothing is written,
// including a newly created attendee.
func (d *DB) IssueTicket(ctx context.Context, p IssueParams, mint MintFunc) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := lockSession(ctx, tx, p.SessionID)
		if err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, session); err != nil {
			return err
		}
		attendee, err := findOrCreateAttendee(ctx, tx, p.Email, p.Name, p.Phone)
		if err != nil {
			return fmt.Errorf("resolve attendee: %w", err)
		}
		ticket, err = mint(session, attendee)
		if err != nil {
			return fmt.Errorf("mint ticket: %w", err)
		}
		ticket.SessionID = session.ID
		ticket.AttendeeID = attendee.ID
		if err := insertTicket(ctx, tx, ticket); err != nil {
			return err
		}
		ticket.Session = session
		ticket.Attendee = attendee
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicket returns the ticket with its attendee and session.
func (d *DB) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("Attendee").
		Relation("Session").
		Where("t.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

// TicketFilter narrows ListTickets; empty fields match everything.
type TicketFilter struct {
	Status    models.TicketStatus
	SessionID string
}

// ListTickets returns matching tickets, newest first.
func (d *DB) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Attendee").
		Relation("Session")
	if f.Status != "" {
		q = q.Where("t.status = ?", f.Status)
	}
	if f.SessionID != "" {
		q = q.Where("t.session_id = ?", f.SessionID)
	}
	err := q.Order("t.created_at DESC").Scan(ctx)
	return tickets, err
}

// UpdateTicketStatus overwrites the ticket's status. Entering ATTENDED stamps
// checked_in_at; any other status clears it.
func (d *DB) UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error) {
	now := time.Now().UTC()
	var checkedIn *time.Time
	if status == models.TicketAttended {
		checkedIn = &now
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Set("checked_in_at = ?", checkedIn).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return d.GetTicket(ctx, id)
}

// DeleteTicket removes the ticket row only; session and attendee stay.
func (d *DB) DeleteTicket(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTickets returns the total number of tickets ever kept in the ledger.
func (d *DB) CountTickets(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
}

// StatusCount is one row of CountTicketsByStatus.
type StatusCount struct {
	Status models.TicketStatus `bun:"status" json:"status"`
	Count  int                 `bun:"count" json:"count"`
}

// CountTicketsByStatus groups a session's tickets by status.
func (d *DB) CountTicketsByStatus(ctx context.Context, sessionID string) ([]StatusCount, error) {
	var rows []StatusCount
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Group("status").
		Order("status").
		Scan(ctx, &rows)
	return rows, err
}
