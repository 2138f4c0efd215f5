package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-demo-booking/internal/models"
)

func findAttendeeByEmail(ctx context.Context, db bun.IDB, email string) (*models.Attendee, error) {
	var attendee models.Attendee
	err := db.NewSelect().
		Model(&attendee).
		Where("a.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &attendee, nil
}

// findOrCreateAttendee returns the attendee registered under email, creating
// it when absent. An existing attendee only gains a phone number when it has
// none; name and a stored phone are never overwritten.
func findOrCreateAttendee(ctx context.Context, db bun.IDB, email, name string, phone *string) (*models.Attendee, error) {
	attendee, err := findAttendeeByEmail(ctx, db, email)
	if errors.Is(err, ErrNotFound) {
		candidate := &models.Attendee{
			ID:          uuid.NewString(),
			Email:       email,
			Name:        name,
			PhoneNumber: phone,
			CreatedAt:   time.Now().UTC(),
		}
		// A concurrent booking with the same email may win the insert; the
		// re-read below picks up whichever row landed.
		_, err = db.NewInsert().
			Model(candidate).
			On("CONFLICT (email) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		attendee, err = findAttendeeByEmail(ctx, db, email)
	}
	if err != nil {
		return nil, err
	}

	if phone != nil && *phone != "" && (attendee.PhoneNumber == nil || *attendee.PhoneNumber == "") {
		attendee.PhoneNumber = phone
		_, err = db.NewUpdate().
			Model(attendee).
			Column("phone_number").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, err
		}
	}
	return attendee, nil
}

// FindOrCreateAttendee resolves the attendee for email outside of any booking.
func (d *DB) FindOrCreateAttendee(ctx context.Context, email, name string, phone *string) (*models.Attendee, error) {
	return findOrCreateAttendee(ctx, d.Bun, email, name, phone)
}

// ListAttendees returns every attendee with their tickets and each ticket's session.
func (d *DB) ListAttendees(ctx context.Context) ([]models.Attendee, error) {
	var attendees []models.Attendee
	err := d.Bun.NewSelect().
		Model(&attendees).
		Relation("Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation("Session").Order("t.created_at ASC")
		}).
		Order("a.created_at ASC").
		Scan(ctx)
	return attendees, err
}

func (d *DB) CountAttendees(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().Model((*models.Attendee)(nil)).Count(ctx)
}
