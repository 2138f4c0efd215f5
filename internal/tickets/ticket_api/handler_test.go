package ticket_api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-demo-booking/internal/booking"
	"ms-demo-booking/internal/database"
	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/models"
	"ms-demo-booking/internal/notify"
	"ms-demo-booking/internal/tickets/qr"
	tickets "ms-demo-booking/internal/tickets/service"
	"ms-demo-booking/internal/utils"
)

type testEnv struct {
	router http.Handler
	ledger *ledger.DB
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateSchema(context.Background(), db))

	gen, err := qr.NewGenerator("")
	require.NoError(t, err)
	ldb := &ledger.DB{Bun: db}
	log := logger.Discard()
	svc := tickets.NewTicketService(ldb, booking.NewLocalLocker(), &notify.LogSender{Logger: log}, nil, gen, log, "http://localhost:3000")
	h := NewHandler(svc, log)

	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Route("/api/admin", h.RegisterAdminRoutes)
	return &testEnv{router: r, ledger: ldb}
}

func (e *testEnv) session(t *testing.T, capacity int) *models.Session {
	t.Helper()
	s := &models.Session{
		ID:         uuid.NewString(),
		Date:       models.NormalizeSessionDate(time.Now().Add(24 * time.Hour)),
		Capacity:   capacity,
		CourseName: "regular",
	}
	require.NoError(t, e.ledger.CreateSession(context.Background(), s))
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type ticketEnvelope struct {
	utils.APIResponse
	Data struct {
		Ticket    models.Ticket `json:"ticket"`
		EmailSent bool          `json:"emailSent"`
	} `json:"data"`
}

func decodeTicket(t *testing.T, rec *httptest.ResponseRecorder) models.Ticket {
	t.Helper()
	var resp ticketEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.Ticket
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestBookTicket(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 1)

	rec := env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": s.ID, "email": "asha@example.com", "name": "Asha",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decodeTicket(t, rec)
	assert.Equal(t, models.TicketCreated, ticket.Status)
	assert.Equal(t, "http://localhost:3000/tickets/"+ticket.ID, ticket.QRCodeURL)
	require.NotNil(t, ticket.Attendee)
	assert.Equal(t, "asha@example.com", ticket.Attendee.Email)

	rec = env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": s.ID, "email": "ravi@example.com", "name": "Ravi",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, utils.CodeCapacityExceeded, decodeError(t, rec).Code)
}

func TestBookTicket_Errors(t *testing.T) {
	env := setupRouter(t)

	rec := env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": uuid.NewString(), "email": "asha@example.com", "name": "Asha",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.CodeNotFound, decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": uuid.NewString(), "email": "nope", "name": "A",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, utils.CodeValidation, resp.Code)
	assert.Contains(t, resp.Details, "email")
	assert.Contains(t, resp.Details, "name")

	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestAdminTicketLifecycle(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 5)

	rec := env.do(t, http.MethodPost, "/api/admin/tickets", map[string]string{
		"sessionId": s.ID, "email": "asha@example.com", "name": "Asha", "phoneNumber": "9876543210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decodeTicket(t, rec)
	require.NotNil(t, ticket.Attendee.PhoneNumber)
	assert.Equal(t, "9876543210", *ticket.Attendee.PhoneNumber)

	rec = env.do(t, http.MethodPost, "/api/admin/tickets", map[string]string{
		"sessionId": s.ID, "email": "ravi@example.com", "name": "Ravi", "phoneNumber": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/admin/tickets/"+ticket.ID, map[string]string{"status": "ATTENDED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPatch, "/api/admin/tickets/"+ticket.ID, map[string]string{"status": "CHECKED_IN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/tickets?status=ATTENDED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.Ticket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, ticket.ID, list.Data[0].ID)

	rec = env.do(t, http.MethodGet, "/api/admin/sessions/"+s.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Data tickets.SessionStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Data.ByStatus[models.TicketAttended])
	assert.Equal(t, 4, stats.Data.Remaining)

	rec = env.do(t, http.MethodDelete, "/api/admin/tickets/"+ticket.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted struct {
		Data tickets.DeleteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.True(t, deleted.Data.EmailSent)

	rec = env.do(t, http.MethodGet, "/api/admin/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminTicket_PhoneOptional(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 5)

	rec := env.do(t, http.MethodPost, "/api/admin/tickets", map[string]string{
		"sessionId": s.ID, "email": "meera@example.com", "name": "Meera",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decodeTicket(t, rec)
	require.NotNil(t, ticket.Attendee)
	assert.Nil(t, ticket.Attendee.PhoneNumber)

	// a later booking with a phone backfills the attendee
	rec = env.do(t, http.MethodPost, "/api/admin/tickets", map[string]string{
		"sessionId": s.ID, "email": "meera@example.com", "name": "Meera", "phoneNumber": "9123456780",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket = decodeTicket(t, rec)
	require.NotNil(t, ticket.Attendee.PhoneNumber)
	assert.Equal(t, "9123456780", *ticket.Attendee.PhoneNumber)
}

func TestBookTicket_UnknownField(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 5)

	rec := env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": s.ID, "email": "asha@example.com", "name": "Asha", "bogus": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeError(t, rec).Code)

	count, err := env.ledger.CountTicketsForSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScan(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 5)

	rec := env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": s.ID, "email": "asha@example.com", "name": "Asha",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ticket := decodeTicket(t, rec)

	rec = env.do(t, http.MethodPost, "/api/admin/scan", map[string]string{"payload": ticket.QRPayload, "status": "ATTENDED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scanned struct {
		Data models.Ticket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanned))
	assert.Equal(t, ticket.ID, scanned.Data.ID)
	assert.Equal(t, models.TicketAttended, scanned.Data.Status)

	// manual entry of the bare id
	rec = env.do(t, http.MethodPost, "/api/admin/scan", map[string]string{"payload": ticket.ID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/scan", map[string]string{"payload": "not-a-ticket"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.CodeScanUnresolved, decodeError(t, rec).Code)
}

func TestCountAndQRCode(t *testing.T) {
	env := setupRouter(t)
	s := env.session(t, 5)

	rec := env.do(t, http.MethodPost, "/api/tickets", map[string]string{
		"sessionId": s.ID, "email": "asha@example.com", "name": "Asha",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ticket := decodeTicket(t, rec)

	rec = env.do(t, http.MethodGet, "/api/tickets/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count TicketCountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, 1, count.TotalCount)

	rec = env.do(t, http.MethodGet, "/api/tickets/"+ticket.ID+"/qr.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = env.do(t, http.MethodGet, "/api/tickets/"+uuid.NewString()+"/qr.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
