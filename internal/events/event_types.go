package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tdhs/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketEscalated EventType = "ticket_escalated"
	EventTicketResolved  EventType = "ticket_resolved"
	EventTicketClosed    EventType = "ticket_closed"
	EventTicketDeleted   EventType = "ticket_deleted"
)

// Actor identifies who caused an event. Public submissions have no user id.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketID     string      `json:"ticket_id"`
	TicketNumber string      `json:"ticket_number"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// NewEvent stamps a fresh event for ticket.
func NewEvent(eventType EventType, ticket *domain.Ticket, actor Actor, payload interface{}) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Actor:        actor,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title         string `json:"title"`
	SubmitterName string `json:"submitter_name"`
	Facility      string `json:"facility,omitempty"`
	District      string `json:"district,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldStatus    domain.TicketStatus   `json:"old_status"`
	AssignedToID string                `json:"assigned_to_id"`
	Priority     domain.TicketPriority `json:"priority"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	EscalatedToID   string                 `json:"escalated_to_id"`
	EscalationLevel domain.EscalationLevel `json:"escalation_level"`
	Reason          string                 `json:"reason"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	Comment string `json:"comment"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
}
