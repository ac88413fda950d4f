package dto

import (
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/service"
)

// NewTrackingResponse builds the public view.
func NewTrackingResponse(view *service.TicketView) TicketTrackingResponse {
	t := view.Ticket
	return TicketTrackingResponse{
		TicketNumber: t.TicketNumber,
		Title:        t.Title,
		Status:       t.Status,
		Priority:     t.Priority,
		Category:     t.Category,
		AssignedTo:   NewUserSummary(view.AssignedTo),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ResolvedAt:   t.ResolvedAt,
	}
}

// NewTicketSummary builds a dashboard row.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              t.ID,
		TicketNumber:    t.TicketNumber,
		Title:           t.Title,
		Status:          t.Status,
		Priority:        t.Priority,
		EscalationLevel: t.EscalationLevel,
		AssignedToID:    t.AssignedToID,
		SubmitterName:   t.SubmittedBy.FullName(),
		FacilityName:    t.SubmittedBy.FacilityName,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewTicketDetail builds the staff detail view.
func NewTicketDetail(view *service.TicketView) TicketDetailResponse {
	t := view.Ticket
	return TicketDetailResponse{
		ID:                t.ID,
		TicketNumber:      t.TicketNumber,
		Title:             t.Title,
		Description:       t.Description,
		Status:            t.Status,
		Priority:          t.Priority,
		Category:          t.Category,
		EscalationLevel:   t.EscalationLevel,
		SubmittedBy:       t.SubmittedBy,
		AssignedTo:        NewUserSummary(view.AssignedTo),
		AssignedBy:        NewUserSummary(view.AssignedBy),
		EscalatedBy:       NewUserSummary(view.EscalatedBy),
		LoggedByID:        t.LoggedByID,
		EscalationReason:  t.EscalationReason,
		ResolutionComment: t.ResolutionComment,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		ResolvedAt:        t.ResolvedAt,
	}
}

// NewUserSummary converts a resolved reference; nil stays nil.
func NewUserSummary(u *domain.UserSummary) *UserSummaryResponse {
	if u == nil {
		return nil
	}
	return &UserSummaryResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Unknown: u.Unknown}
}

// NewUserResponse hides credentials.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		UID:          u.UID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Availability: u.Availability,
		Avatar:       u.Avatar,
		PersalNumber: u.PersalNumber,
		PhoneNumber:  u.PhoneNumber,
		Disabled:     u.Disabled,
	}
}
