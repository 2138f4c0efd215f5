package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-demo-booking/internal/database"
	"ms-demo-booking/internal/models"
)

// newTestDB returns a ledger over a private in-memory SQLite database. A
// single connection keeps the memory database alive and serializes writers.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return &DB{Bun: db}
}

func seedSession(t *testing.T, d *DB, capacity int) *models.Session {
	t.Helper()
	session := &models.Session{
		ID:         uuid.NewString(),
		Date:       models.NormalizeSessionDate(time.Now().Add(72 * time.Hour)),
		Capacity:   capacity,
		CourseName: string(models.CourseRegular),
	}
	require.NoError(t, d.CreateSession(context.Background(), session))
	return session
}

// mintPlain builds a bare ticket; payload details do not matter to the ledger.
func mintPlain(session *models.Session, attendee *models.Attendee) (*models.Ticket, error) {
	id := uuid.NewString()
	return &models.Ticket{
		ID:        id,
		QRPayload: `{"ticketId":"` + id + `"}`,
		QRCodeURL: "http://localhost:3000/tickets/" + id,
	}, nil
}

func issue(t *testing.T, d *DB, sessionID, email string) (*models.Ticket, error) {
	t.Helper()
	return d.IssueTicket(context.Background(), IssueParams{
		SessionID: sessionID,
		Email:     email,
		Name:      "Test Attendee",
	}, mintPlain)
}

func strPtr(s string) *string { return &s }
