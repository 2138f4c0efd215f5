package models

import "time"

type TicketEventType string

const (
	TicketEventIssued        TicketEventType = "ticket.issued"
	TicketEventStatusChanged TicketEventType = "ticket.status_changed"
	TicketEventCancelled     TicketEventType = "ticket.cancelled"
)

// TicketEvent is published to kafka whenever a ticket's lifecycle moves.
type TicketEvent struct {
	Type           TicketEventType `json:"type"`
	TicketID       string          `json:"ticket_id"`
	SessionID      string          `json:"session_id"`
	AttendeeEmail  string          `json:"attendee_email"`
	Status         TicketStatus    `json:"status"`
	PreviousStatus TicketStatus    `json:"previous_status,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
