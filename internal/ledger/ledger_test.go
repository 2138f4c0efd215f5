package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-demo-booking/internal/models"
)

func TestFindSession(t *testing.T) {
	d := newTestDB(t)
	session := seedSession(t, d, 5)

	found, err := d.FindSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
	assert.Equal(t, 5, found.Capacity)

	_, err = d.FindSession(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSession_RejectsNonPositiveCapacity(t *testing.T) {
	d := newTestDB(t)
	err := d.CreateSession(context.Background(), &models.Session{ID: uuid.NewString(), Capacity: 0})
	assert.Error(t, err)
}

func TestFindOrCreateAttendee(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	first, err := d.FindOrCreateAttendee(ctx, "asha@example.com", "Asha", nil)
	require.NoError(t, err)
	assert.Nil(t, first.PhoneNumber)

	// same email resolves to the same attendee and keeps the original name
	again, err := d.FindOrCreateAttendee(ctx, "asha@example.com", "Someone Else", strPtr("9876543210"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Asha", again.Name)
	require.NotNil(t, again.PhoneNumber, "missing phone is backfilled")
	assert.Equal(t, "9876543210", *again.PhoneNumber)

	// an existing phone is never overwritten
	third, err := d.FindOrCreateAttendee(ctx, "asha@example.com", "Asha", strPtr("1111111111"))
	require.NoError(t, err)
	assert.Equal(t, "9876543210", *third.PhoneNumber)

	n, err := d.CountAttendees(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIssueTicket_CapacityGate(t *testing.T) {
	d := newTestDB(t)
	session := seedSession(t, d, 2)

	_, err := issue(t, d, session.ID, "a@example.com")
	require.NoError(t, err)
	_, err = issue(t, d, session.ID, "b@example.com")
	require.NoError(t, err)

	_, err = issue(t, d, session.ID, "c@example.com")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	count, err := d.CountTicketsForSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// the rejected booker left no attendee behind
	n, err := d.CountAttendees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIssueTicket_UnknownSessionWritesNothing(t *testing.T) {
	d := newTestDB(t)

	_, err := issue(t, d, uuid.NewString(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	attendees, err := d.CountAttendees(context.Background())
	require.NoError(t, err)
	assert.Zero(t, attendees)
	tickets, err := d.CountTickets(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tickets)
}

func TestIssueTicket_MintFailureRollsBack(t *testing.T) {
	d := newTestDB(t)
	session := seedSession(t, d, 3)

	_, err := d.IssueTicket(context.Background(), IssueParams{
		SessionID: session.ID,
		Email:     "asha@example.com",
		Name:      "Asha",
	}, func(*models.Session, *models.Attendee) (*models.Ticket, error) {
		return nil, errors.New("qr encoder down")
	})
	require.Error(t, err)

	n, err := d.CountAttendees(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIssueTicket_SameEmailTwice(t *testing.T) {
	d := newTestDB(t)
	session := seedSession(t, d, 5)

	first, err := issue(t, d, session.ID, "asha@example.com")
	require.NoError(t, err)
	second, err := issue(t, d, session.ID, "asha@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.AttendeeID, second.AttendeeID)

	n, err := d.CountAttendees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := d.CountTicketsForSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIssueTicket_ConcurrentBookingsNeverOverfill(t *testing.T) {
	d := newTestDB(t)
	const capacity, extra = 5, 7
	session := seedSession(t, d, capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, rejected int
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := d.IssueTicket(context.Background(), IssueParams{
				SessionID: session.ID,
				Email:     fmt.Sprintf("booker-%d@example.com", n),
				Name:      "Booker",
			}, mintPlain)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, extra, rejected)

	count, err := d.CountTicketsForSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, count)
}

func TestCreateTicket_CapacityGate(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	session := seedSession(t, d, 1)
	attendee, err := d.FindOrCreateAttendee(ctx, "asha@example.com", "Asha", nil)
	require.NoError(t, err)

	first := &models.Ticket{ID: uuid.NewString(), AttendeeID: attendee.ID, SessionID: session.ID}
	require.NoError(t, d.CreateTicket(ctx, first))
	assert.Equal(t, models.TicketCreated, first.Status)

	second := &models.Ticket{ID: uuid.NewString(), AttendeeID: attendee.ID, SessionID: session.ID}
	assert.ErrorIs(t, d.CreateTicket(ctx, second), ErrCapacityExceeded)
}

func TestUpdateTicketStatus_AnyToAny(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	session := seedSession(t, d, 5)
	ticket, err := issue(t, d, session.ID, "asha@example.com")
	require.NoError(t, err)

	path := []models.TicketStatus{
		models.TicketAttended,
		models.TicketCancelled,
		models.TicketCreated,
		models.TicketSubscribed,
		models.TicketNotAttended,
		models.TicketAttended,
	}
	for _, status := range path {
		updated, err := d.UpdateTicketStatus(ctx, ticket.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
		if status == models.TicketAttended {
			assert.NotNil(t, updated.CheckedInAt)
		} else {
			assert.Nil(t, updated.CheckedInAt)
		}
	}

	_, err = d.UpdateTicketStatus(ctx, uuid.NewString(), models.TicketAttended)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTicket_LoadsRelations(t *testing.T) {
	d := newTestDB(t)
	session := seedSession(t, d, 5)
	issued, err := issue(t, d, session.ID, "asha@example.com")
	require.NoError(t, err)

	ticket, err := d.GetTicket(context.Background(), issued.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.Attendee)
	require.NotNil(t, ticket.Session)
	assert.Equal(t, "asha@example.com", ticket.Attendee.Email)
	assert.Equal(t, session.ID, ticket.Session.ID)

	_, err = d.GetTicket(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	busy := seedSession(t, d, 5)
	_, err := issue(t, d, busy.ID, "asha@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, d.DeleteSession(ctx, busy.ID), ErrConflict)
	_, err = d.FindSession(ctx, busy.ID)
	assert.NoError(t, err, "blocked delete leaves the session in place")

	empty := seedSession(t, d, 5)
	require.NoError(t, d.DeleteSession(ctx, empty.ID))
	_, err = d.FindSession(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, d.DeleteSession(ctx, uuid.NewString()), ErrNotFound)
}

func TestDeleteTicket(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	session := seedSession(t, d, 1)
	ticket, err := issue(t, d, session.ID, "asha@example.com")
	require.NoError(t, err)

	require.NoError(t, d.DeleteTicket(ctx, ticket.ID))
	assert.ErrorIs(t, d.DeleteTicket(ctx, ticket.ID), ErrNotFound)

	// the freed seat can be booked again and the attendee survives
	_, err = issue(t, d, session.ID, "other@example.com")
	assert.NoError(t, err)
	n, err := d.CountAttendees(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateSession(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	session := seedSession(t, d, 5)

	newDate := models.NormalizeSessionDate(time.Now().Add(240 * time.Hour)).UTC()
	capacity := 12
	updated, err := d.UpdateSession(ctx, session.ID, SessionUpdate{Date: &newDate, Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Capacity)

	found, err := d.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, found.Capacity)
	assert.True(t, newDate.Equal(found.Date))

	zero := 0
	_, err = d.UpdateSession(ctx, session.ID, SessionUpdate{Capacity: &zero})
	assert.Error(t, err)

	_, err = d.UpdateSession(ctx, uuid.NewString(), SessionUpdate{Capacity: &capacity})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTicketsAndCounts(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	morning := seedSession(t, d, 5)
	evening := seedSession(t, d, 5)

	a, err := issue(t, d, morning.ID, "a@example.com")
	require.NoError(t, err)
	_, err = issue(t, d, morning.ID, "b@example.com")
	require.NoError(t, err)
	_, err = issue(t, d, evening.ID, "c@example.com")
	require.NoError(t, err)
	_, err = d.UpdateTicketStatus(ctx, a.ID, models.TicketAttended)
	require.NoError(t, err)

	all, err := d.ListTickets(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySession, err := d.ListTickets(ctx, TicketFilter{SessionID: morning.ID})
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	attended, err := d.ListTickets(ctx, TicketFilter{Status: models.TicketAttended})
	require.NoError(t, err)
	require.Len(t, attended, 1)
	assert.Equal(t, a.ID, attended[0].ID)

	total, err := d.CountTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byStatus, err := d.CountTicketsByStatus(ctx, morning.ID)
	require.NoError(t, err)
	counts := map[models.TicketStatus]int{}
	for _, row := range byStatus {
		counts[row.Status] = row.Count
	}
	assert.Equal(t, map[models.TicketStatus]int{models.TicketAttended: 1, models.TicketCreated: 1}, counts)

	sessions, err := d.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		if s.ID == morning.ID {
			assert.Equal(t, 2, s.TicketCount)
		} else {
			assert.Equal(t, 1, s.TicketCount)
		}
	}

	detail, err := d.GetSessionDetail(ctx, morning.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.TicketCount)
	for _, tk := range detail.Tickets {
		assert.NotNil(t, tk.Attendee)
	}

	attendees, err := d.ListAttendees(ctx)
	require.NoError(t, err)
	require.Len(t, attendees, 3)
	for _, at := range attendees {
		require.Len(t, at.Tickets, 1)
		assert.NotNil(t, at.Tickets[0].Session)
	}
}
