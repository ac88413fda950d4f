package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusEscalated  TicketStatus = "Escalated"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketPriority enumerates urgency, set on assignment.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// EscalationLevel records which tier a ticket was escalated to.
type EscalationLevel string

const (
	EscalationLevelTechnician EscalationLevel = "Technician"
	EscalationLevelSupervisor EscalationLevel = "Supervisor"
)

// DefaultCategory is stamped on every new ticket.
const DefaultCategory = "General"

// Submitter is the contact snapshot captured at submission time. It is never
// updated after the ticket is written.
type Submitter struct {
	PersalNumber string `json:"persalNumber"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Cellphone    string `json:"cellphone"`
	JobTitle     string `json:"jobTitle"`
	Location     string `json:"location"`
	District     string `json:"district"`
	FacilityName string `json:"facilityName"`
}

// FullName joins first and last name.
func (s Submitter) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Submission is validated public input for a new ticket.
type Submission struct {
	Submitter   Submitter
	Description string
	LoggedByID  string
}

// Ticket is the aggregate for support requests. ID is the store-generated
// document id and is never derived from TicketNumber.
type Ticket struct {
	ID                string          `json:"-"`
	TicketNumber      string          `json:"ticketNumber"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Status            TicketStatus    `json:"status"`
	Priority          TicketPriority  `json:"priority,omitempty"`
	Category          string          `json:"category"`
	EscalationLevel   EscalationLevel `json:"escalationLevel,omitempty"`
	SubmittedBy       Submitter       `json:"submittedBy"`
	AssignedToID      string          `json:"assignedToId,omitempty"`
	AssignedByID      string          `json:"assignedById,omitempty"`
	EscalatedByID     string          `json:"escalatedById,omitempty"`
	LoggedByID        string          `json:"loggedById,omitempty"`
	EscalationReason  string          `json:"escalationReason,omitempty"`
	ResolutionComment string          `json:"resolutionComment,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	ResolvedAt        *time.Time      `json:"resolvedAt,omitempty"`
}

var transitions = map[TicketStatus][]TicketStatus{
	"":                     {TicketStatusOpen},
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusEscalated},
	TicketStatusEscalated:  {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed},
}

// CanTransition reports whether a ticket may move from one status to another.
// The empty status stands for a ticket that does not exist yet.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusEscalated, TicketStatusClosed:
		return true
	}
	return false
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}
