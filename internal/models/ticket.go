package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketCreated     TicketStatus = "CREATED"
	TicketAttended    TicketStatus = "ATTENDED"
	TicketNotAttended TicketStatus = "NOT_ATTENDED"
	TicketCancelled   TicketStatus = "CANCELLED"
	TicketSubscribed  TicketStatus = "SUBSCRIBED"
)

// TicketStatuses lists every status a ticket may hold.
var TicketStatuses = []TicketStatus{
	TicketCreated,
	TicketAttended,
	TicketNotAttended,
	TicketCancelled,
	TicketSubscribed,
}

func (s TicketStatus) Valid() bool {
	for _, st := range TicketStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Ticket binds one attendee to one session. ID doubles as the check-in token.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID          string       `bun:"id,pk" json:"id"`
	Status      TicketStatus `bun:"status,notnull" json:"status"`
	QRPayload   string       `bun:"qr_payload,notnull" json:"qrPayload"`
	QRCodeURL   string       `bun:"qr_code_url,notnull" json:"qrCodeUrl"`
	AttendeeID  string       `bun:"attendee_id,notnull" json:"attendeeId"`
	SessionID   string       `bun:"session_id,notnull" json:"sessionId"`
	CheckedInAt *time.Time   `bun:"checked_in_at" json:"checkedInAt,omitempty"`
	CreatedAt   time.Time    `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time    `bun:"updated_at,notnull" json:"updatedAt"`

	Attendee *Attendee `bun:"rel:belongs-to,join:attendee_id=id" json:"attendee,omitempty"`
	Session  *Session  `bun:"rel:belongs-to,join:session_id=id" json:"session,omitempty"`
}
