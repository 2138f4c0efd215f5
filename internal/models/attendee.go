package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Attendee is a person who booked at least one demo session. Email is unique.
type Attendee struct {
	bun.BaseModel `bun:"table:attendees,alias:a"`

	ID          string    `bun:"id,pk" json:"id"`
	Email       string    `bun:"email,unique,notnull" json:"email"`
	Name        string    `bun:"name,notnull" json:"name"`
	PhoneNumber *string   `bun:"phone_number" json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`

	Tickets []*Ticket `bun:"rel:has-many,join:id=attendee_id" json:"tickets,omitempty"`
}
