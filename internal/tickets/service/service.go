package tickets

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-demo-booking/internal/booking"
	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/models"
	"ms-demo-booking/internal/notify"
	"ms-demo-booking/internal/tickets/qr"
	"ms-demo-booking/internal/utils"
)

type TicketDBLayer interface {
	FindSession(ctx context.Context, id string) (*models.Session, error)
	IssueTicket(ctx context.Context, p ledger.IssueParams, mint ledger.MintFunc) (*models.Ticket, error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListTickets(ctx context.Context, f ledger.TicketFilter) ([]models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	CountTickets(ctx context.Context) (int, error)
	CountTicketsByStatus(ctx context.Context, sessionID string) ([]ledger.StatusCount, error)
}

// EventPublisher receives ticket lifecycle events. Publishing is best-effort.
type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent) error
}

type TicketService struct {
	DB        TicketDBLayer
	Locker    booking.Locker
	Mailer    notify.Sender
	Events    EventPublisher
	QR        *qr.Generator
	Logger    *logger.Logger
	PublicURL string
}

func NewTicketService(db TicketDBLayer, locker booking.Locker, mailer notify.Sender, events EventPublisher, gen *qr.Generator, log *logger.Logger, publicURL string) *TicketService {
	return &TicketService{
		DB:        db,
		Locker:    locker,
		Mailer:    mailer,
		Events:    events,
		QR:        gen,
		Logger:    log,
		PublicURL: publicURL,
	}
}

// IssueRequest is a booking. Phone is only collected on the admin path.
type IssueRequest struct {
	SessionID string  `json:"sessionId" validate:"required,uuid"`
	Email     string  `json:"email" validate:"required,email"`
	Name      string  `json:"name" validate:"required,min=2"`
	Phone     *string `json:"phoneNumber,omitempty" validate:"omitempty,min=10"`
}

func (r *IssueRequest) normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		if phone == "" {
			r.Phone = nil
		} else {
			r.Phone = &phone
		}
	}
}

type IssueResult struct {
	Ticket           *models.Ticket `json:"ticket"`
	NotificationSent bool           `json:"emailSent"`
}

// IssueTicket books one seat. The session's booking lock is held around the
// ledger transaction; the confirmation email goes out after both are released
// and its failure only clears NotificationSent.
func (s *TicketService) IssueTicket(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	req.normalize()
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	unlock, err := s.Locker.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", req.SessionID, err)
	}
	ticket, err := s.DB.IssueTicket(ctx, ledger.IssueParams{
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
	}, s.mint)
	unlock()
	if err != nil {
		if errors.Is(err, ledger.ErrCapacityExceeded) {
			s.Logger.LogTicket("REJECTED", req.SessionID, fmt.Sprintf("session full, booking by %s refused", req.Email))
		}
		return nil, err
	}

	s.Logger.LogTicket("ISSUED", ticket.ID, fmt.Sprintf("session %s for %s", ticket.SessionID, ticket.Attendee.Email))
	s.publish(ctx, models.TicketEvent{
		Type:          models.TicketEventIssued,
		TicketID:      ticket.ID,
		SessionID:     ticket.SessionID,
		AttendeeEmail: ticket.Attendee.Email,
		Status:        ticket.Status,
	})

	return &IssueResult{
		Ticket:           ticket,
		NotificationSent: s.sendConfirmation(ctx, ticket),
	}, nil
}

// mint assigns the ticket id up front so the QR payload can carry it.
func (s *TicketService) mint(session *models.Session, attendee *models.Attendee) (*models.Ticket, error) {
	id := uuid.NewString()
	ticket := &models.Ticket{
		ID:        id,
		Status:    models.TicketCreated,
		QRCodeURL: qr.TicketURL(s.PublicURL, id),
	}
	payload, err := s.QR.Encode(qr.NewPayload(ticket, attendee, session))
	if err != nil {
		return nil, err
	}
	ticket.QRPayload = payload
	return ticket, nil
}

func (s *TicketService) sendConfirmation(ctx context.Context, ticket *models.Ticket) bool {
	image, err := qr.DataURL(ticket.QRPayload)
	if err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("QR image for ticket %s failed: %v", ticket.ID, err))
	}
	msg, err := notify.ConfirmationMessage(ticket.Attendee.Email, notify.Confirmation{
		Name:        ticket.Attendee.Name,
		SessionDate: ticket.Session.Date,
		CourseName:  ticket.Session.CourseName,
		TicketID:    ticket.ID,
		TicketURL:   ticket.QRCodeURL,
		QRImage:     template.URL(image),
		QRPayload:   ticket.QRPayload,
	})
	if err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Confirmation for ticket %s could not be rendered: %v", ticket.ID, err))
		return false
	}
	return s.deliver(ctx, msg, ticket.ID)
}

func (s *TicketService) sendCancellation(ctx context.Context, ticket *models.Ticket) bool {
	msg, err := notify.CancellationMessage(ticket.Attendee.Email, notify.Cancellation{
		Name:     ticket.Attendee.Name,
		TicketID: ticket.ID,
	})
	if err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Cancellation for ticket %s could not be rendered: %v", ticket.ID, err))
		return false
	}
	return s.deliver(ctx, msg, ticket.ID)
}

func (s *TicketService) deliver(ctx context.Context, msg notify.Message, ticketID string) bool {
	if err := s.Mailer.Send(ctx, msg); err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("NOTIFICATION_FAILURE for ticket %s to %s: %v", ticketID, msg.To, err))
		return false
	}
	return true
}

func (s *TicketService) publish(ctx context.Context, event models.TicketEvent) {
	if s.Events == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.Events.PublishTicketEvent(ctx, event); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for ticket %s: %v", event.Type, event.TicketID, err))
	}
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	return ticket, nil
}

func (s *TicketService) ListTickets(ctx context.Context, f ledger.TicketFilter) ([]models.Ticket, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, utils.Invalid("status", "unknown ticket status")
	}
	return s.DB.ListTickets(ctx, f)
}

// SetStatus overwrites a ticket's status. Every status may follow every
// other, including leaving CANCELLED.
func (s *TicketService) SetStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, utils.Invalid("status", "must be one of CREATED, ATTENDED, NOT_ATTENDED, CANCELLED, SUBSCRIBED")
	}
	previous, err := s.DB.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	ticket, err := s.DB.UpdateTicketStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}

	s.Logger.LogTicket("STATUS", id, fmt.Sprintf("%s -> %s", previous.Status, status))
	s.publish(ctx, models.TicketEvent{
		Type:           models.TicketEventStatusChanged,
		TicketID:       id,
		SessionID:      ticket.SessionID,
		AttendeeEmail:  attendeeEmail(ticket),
		Status:         status,
		PreviousStatus: previous.Status,
	})
	return ticket, nil
}

// ResolveScan extracts a ticket id from scanned text. Text that is not a
// recognizable payload is returned unchanged as the id itself.
func (s *TicketService) ResolveScan(raw string) string {
	if p, err := s.QR.Decode(raw); err == nil {
		return p.TicketID
	}
	return raw
}

// LookupScan resolves scanned text and loads the ticket it names.
func (s *TicketService) LookupScan(ctx context.Context, raw string) (*models.Ticket, error) {
	// scanners and typed input often carry stray whitespace
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, utils.Invalid("payload", "is required")
	}
	id := s.ResolveScan(raw)
	ticket, err := s.DB.GetTicket(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.Logger.Warn("SCAN", fmt.Sprintf("Scan resolved to %q but no such ticket exists", id))
		return nil, fmt.Errorf("ticket %q: %w", id, utils.ErrScanUnresolved)
	}
	if err != nil {
		return nil, err
	}
	s.Logger.Info("SCAN", fmt.Sprintf("Scan resolved to ticket %s (%s)", ticket.ID, ticket.Status))
	return ticket, nil
}

type DeleteResult struct {
	EmailSent bool `json:"emailSent"`
}

// DeleteTicket removes the ticket and notifies its attendee. The attendee and
// session are untouched.
func (s *TicketService) DeleteTicket(ctx context.Context, id string) (*DeleteResult, error) {
	ticket, err := s.DB.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	if err := s.DB.DeleteTicket(ctx, id); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}

	s.Logger.LogTicket("DELETED", id, fmt.Sprintf("session %s", ticket.SessionID))
	s.publish(ctx, models.TicketEvent{
		Type:           models.TicketEventCancelled,
		TicketID:       id,
		SessionID:      ticket.SessionID,
		AttendeeEmail:  attendeeEmail(ticket),
		Status:         models.TicketCancelled,
		PreviousStatus: ticket.Status,
	})

	result := &DeleteResult{}
	if ticket.Attendee != nil {
		result.EmailSent = s.sendCancellation(ctx, ticket)
	}
	return result, nil
}

// TicketQRCode renders the stored QR payload as a PNG.
func (s *TicketService) TicketQRCode(ctx context.Context, id string) ([]byte, error) {
	ticket, err := s.DB.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	return qr.PNG(ticket.QRPayload)
}

func (s *TicketService) CountTickets(ctx context.Context) (int, error) {
	return s.DB.CountTickets(ctx)
}

type SessionStats struct {
	SessionID string                      `json:"sessionId"`
	Capacity  int                         `json:"capacity"`
	Issued    int                         `json:"issued"`
	Remaining int                         `json:"remaining"`
	ByStatus  map[models.TicketStatus]int `json:"byStatus"`
}

// SessionStats summarizes check-in progress for one session.
func (s *TicketService) SessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	session, err := s.DB.FindSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	rows, err := s.DB.CountTicketsByStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &SessionStats{
		SessionID: session.ID,
		Capacity:  session.Capacity,
		ByStatus:  make(map[models.TicketStatus]int, len(models.TicketStatuses)),
	}
	for _, st := range models.TicketStatuses {
		stats.ByStatus[st] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Issued += row.Count
	}
	stats.Remaining = session.Capacity - stats.Issued
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	return stats, nil
}

func attendeeEmail(ticket *models.Ticket) string {
	if ticket.Attendee == nil {
		return ""
	}
	return ticket.Attendee.Email
}
