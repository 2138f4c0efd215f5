package models

import (
	"time"

	"github.com/uptrace/bun"
)

const DefaultSessionCapacity = 30

// CourseLabel names the programme a demo session belongs to.
type CourseLabel string

const (
	CourseRegular        CourseLabel = "regular"
	CourseFastTrack      CourseLabel = "fast-track"
	CourseZeroToAdvanced CourseLabel = "zero-to-advanced"
)

// Session is one scheduled demo class. Date is always midnight of the scheduled day.
type Session struct {
	bun.BaseModel `bun:"table:demo_sessions,alias:ds"`

	ID         string    `bun:"id,pk" json:"id"`
	Date       time.Time `bun:"date,notnull" json:"date"`
	Capacity   int       `bun:"capacity,notnull" json:"capacity"`
	CourseName string    `bun:"course_name,notnull" json:"courseName"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updatedAt"`

	Tickets     []*Ticket `bun:"rel:has-many,join:id=session_id" json:"tickets,omitempty"`
	TicketCount int       `bun:"-" json:"ticketCount"`
}

// IsFull reports whether issued tickets already fill the session.
func (s *Session) IsFull(issued int) bool {
	return issued >= s.Capacity
}

// NormalizeSessionDate drops the time of day, keeping the calendar day in t's location.
func NormalizeSessionDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
