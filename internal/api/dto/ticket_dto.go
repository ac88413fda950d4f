package dto

import (
	"time"

	"github.com/tdhs/helpdesk-service/internal/domain"
)

// SubmitTicketResponse is returned for a new public submission.
type SubmitTicketResponse struct {
	TicketNumber string `json:"ticket_number"`
	DocumentID   string `json:"document_id"`
}

// TicketTrackingResponse is the public view of a ticket. It leaves out the
// submitter's contact details.
type TicketTrackingResponse struct {
	TicketNumber string                `json:"ticket_number"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority,omitempty"`
	Category     string                `json:"category"`
	AssignedTo   *UserSummaryResponse  `json:"assigned_to,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ResolvedAt   *time.Time            `json:"resolved_at,omitempty"`
}

// TicketSummary is one row of the staff dashboard.
type TicketSummary struct {
	ID              string                 `json:"id"`
	TicketNumber    string                 `json:"ticket_number"`
	Title           string                 `json:"title"`
	Status          domain.TicketStatus    `json:"status"`
	Priority        domain.TicketPriority  `json:"priority,omitempty"`
	EscalationLevel domain.EscalationLevel `json:"escalation_level,omitempty"`
	AssignedToID    string                 `json:"assigned_to_id,omitempty"`
	SubmitterName   string                 `json:"submitter_name"`
	FacilityName    string                 `json:"facility_name"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// TicketOverviewResponse holds the dashboard counters.
type TicketOverviewResponse struct {
	Active        int `json:"active"`
	HighPriority  int `json:"high_priority"`
	Escalated     int `json:"escalated"`
	ResolvedToday int `json:"resolved_today"`
}

// TicketDetailResponse provides full ticket info to staff.
type TicketDetailResponse struct {
	ID                string                 `json:"id"`
	TicketNumber      string                 `json:"ticket_number"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Status            domain.TicketStatus    `json:"status"`
	Priority          domain.TicketPriority  `json:"priority,omitempty"`
	Category          string                 `json:"category"`
	EscalationLevel   domain.EscalationLevel `json:"escalation_level,omitempty"`
	SubmittedBy       domain.Submitter       `json:"submitted_by"`
	AssignedTo        *UserSummaryResponse   `json:"assigned_to,omitempty"`
	AssignedBy        *UserSummaryResponse   `json:"assigned_by,omitempty"`
	EscalatedBy       *UserSummaryResponse   `json:"escalated_by,omitempty"`
	LoggedByID        string                 `json:"logged_by_id,omitempty"`
	EscalationReason  string                 `json:"escalation_reason,omitempty"`
	ResolutionComment string                 `json:"resolution_comment,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
}

// DiagnosisResponse carries a generated first opinion.
type DiagnosisResponse struct {
	PotentialDiagnosis string   `json:"potential_diagnosis"`
	SuggestedSteps     []string `json:"suggested_steps"`
}
