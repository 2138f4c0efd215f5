package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/models"
	"ms-demo-booking/internal/utils"
)

type SessionDBLayer interface {
	CreateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSessionDetail(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, upd ledger.SessionUpdate) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListAttendees(ctx context.Context) ([]models.Attendee, error)
}

type SessionService struct {
	DB     SessionDBLayer
	Logger *logger.Logger
}

func NewSessionService(db SessionDBLayer, log *logger.Logger) *SessionService {
	return &SessionService{DB: db, Logger: log}
}

type CreateRequest struct {
	Date       string `json:"date" validate:"required"`
	Capacity   *int   `json:"capacity,omitempty" validate:"omitempty,gt=0"`
	CourseName string `json:"courseName" validate:"required,oneof=regular fast-track zero-to-advanced"`
}

type UpdateRequest struct {
	Date     *string `json:"date,omitempty"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,gt=0"`
}

// ParseSessionDate accepts a calendar day or an RFC 3339 timestamp and
// returns midnight of that day.
func ParseSessionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.NormalizeSessionDate(t), nil
		}
	}
	return time.Time{}, utils.Invalid("date", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

func (s *SessionService) CreateSession(ctx context.Context, req CreateRequest) (*models.Session, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}
	date, err := ParseSessionDate(req.Date)
	if err != nil {
		return nil, err
	}
	capacity := models.DefaultSessionCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}

	session := &models.Session{
		ID:         uuid.NewString(),
		Date:       date,
		Capacity:   capacity,
		CourseName: req.CourseName,
	}
	if err := s.DB.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.Logger.LogSession("CREATED", session.ID, fmt.Sprintf("%s on %s, capacity %d", session.CourseName, session.Date.Format("2006-01-02"), session.Capacity))
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.DB.ListSessions(ctx)
}

// ListPublicSessions returns sessions with their ticket counts but without
// attendee details.
func (s *SessionService) ListPublicSessions(ctx context.Context) ([]models.Session, error) {
	list, err := s.DB.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Tickets = nil
	}
	return list, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.DB.GetSessionDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return session, nil
}

// UpdateSession changes the date and/or capacity. Lowering capacity below the
// tickets already issued is allowed; it only blocks further bookings.
func (s *SessionService) UpdateSession(ctx context.Context, id string, req UpdateRequest) (*models.Session, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}
	if req.Date == nil && req.Capacity == nil {
		return nil, utils.Invalid("body", "date or capacity is required")
	}

	var upd ledger.SessionUpdate
	if req.Date != nil {
		date, err := ParseSessionDate(*req.Date)
		if err != nil {
			return nil, err
		}
		upd.Date = &date
	}
	upd.Capacity = req.Capacity

	session, err := s.DB.UpdateSession(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.Logger.LogSession("UPDATED", id, fmt.Sprintf("date %s, capacity %d", session.Date.Format("2006-01-02"), session.Capacity))
	return session, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	if err := s.DB.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	s.Logger.LogSession("DELETED", id, "removed")
	return nil
}

// Course is one booking in an attendee summary.
type Course struct {
	TicketID    string              `json:"ticketId"`
	Status      models.TicketStatus `json:"status"`
	CourseName  string              `json:"courseName"`
	SessionDate time.Time           `json:"sessionDate"`
}

type AttendeeSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	PhoneNumber *string  `json:"phoneNumber,omitempty"`
	Courses     []Course `json:"courses"`
}

// ListAttendees returns every attendee with the sessions they booked.
func (s *SessionService) ListAttendees(ctx context.Context) ([]AttendeeSummary, error) {
	attendees, err := s.DB.ListAttendees(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]AttendeeSummary, 0, len(attendees))
	for _, a := range attendees {
		summary := AttendeeSummary{
			ID:          a.ID,
			Name:        a.Name,
			Email:       a.Email,
			PhoneNumber: a.PhoneNumber,
			Courses:     make([]Course, 0, len(a.Tickets)),
		}
		for _, t := range a.Tickets {
			course := Course{TicketID: t.ID, Status: t.Status}
			if t.Session != nil {
				course.CourseName = t.Session.CourseName
				course.SessionDate = t.Session.Date
			}
			summary.Courses = append(summary.Courses, course)
		}
		out = append(out, summary)
	}
	return out, nil
}
