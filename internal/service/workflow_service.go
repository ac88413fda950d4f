package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/events"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// workflowAttempts bounds retries of a ticket update that lost a race.
const workflowAttempts = 3

// AssignInput assigns a ticket and sets its priority.
type AssignInput struct {
	TechnicianID string                `json:"technician_id" validate:"required"`
	Priority     domain.TicketPriority `json:"priority" validate:"required,oneof=Low Medium High Critical"`
}

// EscalateInput hands a ticket to another staff member.
type EscalateInput struct {
	TargetID string `json:"target_id" validate:"required"`
	Reason   string `json:"reason" validate:"required,utf8,min=20"`
}

// ResolveInput marks a ticket resolved.
type ResolveInput struct {
	Comment string `json:"comment" validate:"required,utf8,min=20"`
}

// WorkflowService applies staff actions to already-numbered tickets. It never
// touches the ticket number or the counter.
type WorkflowService struct {
	store      docstore.Store
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles workflow collaborators.
type WorkflowDependencies struct {
	Store      docstore.Store
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		store:      deps.Store,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Assign gives an Open ticket to a technician or supervisor. An Escalated
// ticket may only be reassigned by its current assignee, a Supervisor or an Admin.
func (s *WorkflowService) Assign(ctx context.Context, actor domain.Principal, ticketID string, input AssignInput) (*domain.Ticket, error) {
	input.TechnicianID = strings.TrimSpace(input.TechnicianID)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid assignment", err)
	}
	if !actor.HasRole(domain.RoleHelpDesk, domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("role cannot assign tickets")
	}

	var oldStatus domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(ctx context.Context, tx docstore.Tx, t *domain.Ticket) error {
		if err := requireTransition(t, domain.TicketStatusInProgress); err != nil {
			return err
		}
		if !canReassign(actor, t) {
			return apperrors.NewForbidden("escalated ticket belongs to its assignee")
		}
		target, err := s.loadTarget(ctx, tx, input.TechnicianID)
		if err != nil {
			return err
		}
		if !isAssignable(target) {
			return apperrors.NewValidationError("assignee must be an available technician or supervisor", map[string]any{"technician_id": target.ID})
		}
		oldStatus = t.Status
		t.Status = domain.TicketStatusInProgress
		t.Priority = input.Priority
		t.AssignedToID = target.ID
		t.AssignedByID = actor.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketAssigned, ticket, actor, events.TicketAssignedPayload{
		OldStatus:    oldStatus,
		AssignedToID: ticket.AssignedToID,
		Priority:     ticket.Priority,
	})
	return ticket, nil
}

// Escalate hands an In Progress ticket to another staff member.
func (s *WorkflowService) Escalate(ctx context.Context, actor domain.Principal, ticketID string, input EscalateInput) (*domain.Ticket, error) {
	input.TargetID = strings.TrimSpace(input.TargetID)
	input.Reason = strings.TrimSpace(input.Reason)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid escalation", err)
	}
	if !actor.HasRole(domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("role cannot escalate tickets")
	}
	if input.TargetID == actor.UserID {
		return nil, apperrors.NewValidationError("cannot escalate to yourself", nil)
	}

	ticket, err := s.mutate(ctx, ticketID, func(ctx context.Context, tx docstore.Tx, t *domain.Ticket) error {
		if !canSee(actor, t) {
			return apperrors.NewForbidden("ticket is not assigned to you")
		}
		if err := requireTransition(t, domain.TicketStatusEscalated); err != nil {
			return err
		}
		target, err := s.loadTarget(ctx, tx, input.TargetID)
		if err != nil {
			return err
		}
		if !isEscalationTarget(actor, target) {
			return apperrors.NewValidationError("target cannot receive this escalation", map[string]any{"target_id": target.ID})
		}
		t.Status = domain.TicketStatusEscalated
		t.AssignedToID = target.ID
		t.EscalatedByID = actor.UserID
		t.EscalationReason = input.Reason
		t.EscalationLevel = domain.EscalationLevelFor(target.Role)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketEscalated, ticket, actor, events.TicketEscalatedPayload{
		EscalatedToID:   ticket.AssignedToID,
		EscalationLevel: ticket.EscalationLevel,
		Reason:          ticket.EscalationReason,
	})
	return ticket, nil
}

// Resolve closes out the work on an In Progress ticket.
func (s *WorkflowService) Resolve(ctx context.Context, actor domain.Principal, ticketID string, input ResolveInput) (*domain.Ticket, error) {
	input.Comment = strings.TrimSpace(input.Comment)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid resolution", err)
	}
	if !actor.HasRole(domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("role cannot resolve tickets")
	}

	ticket, err := s.mutate(ctx, ticketID, func(ctx context.Context, tx docstore.Tx, t *domain.Ticket) error {
		if !canSee(actor, t) {
			return apperrors.NewForbidden("ticket is not assigned to you")
		}
		if err := requireTransition(t, domain.TicketStatusResolved); err != nil {
			return err
		}
		resolvedAt := s.now().UTC()
		t.Status = domain.TicketStatusResolved
		t.ResolutionComment = input.Comment
		t.ResolvedAt = &resolvedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketResolved, ticket, actor, events.TicketResolvedPayload{Comment: ticket.ResolutionComment})
	return ticket, nil
}

// Close finalizes a Resolved or Escalated ticket.
func (s *WorkflowService) Close(ctx context.Context, actor domain.Principal, ticketID string) (*domain.Ticket, error) {
	if !actor.HasRole(domain.RoleSupervisor, domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("role cannot close tickets")
	}
	var oldStatus domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(ctx context.Context, tx docstore.Tx, t *domain.Ticket) error {
		if err := requireTransition(t, domain.TicketStatusClosed); err != nil {
			return err
		}
		oldStatus = t.Status
		t.Status = domain.TicketStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketClosed, ticket, actor, events.TicketClosedPayload{OldStatus: oldStatus})
	return ticket, nil
}

// Delete removes a ticket. Its number is never reissued.
func (s *WorkflowService) Delete(ctx context.Context, actor domain.Principal, ticketID string) error {
	if !actor.HasRole(domain.RoleAdmin) {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	var deleted *domain.Ticket
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		t, err := s.tickets.GetForUpdate(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		deleted = t
		return s.tickets.Remove(tx, ticketID)
	})
	if err != nil {
		return ticketError(ticketID, err)
	}
	s.publish(ctx, events.EventTicketDeleted, deleted, actor, nil)
	return nil
}

// mutate runs fn against a fresh read of the ticket and saves the result,
// retrying when another writer got there first.
func (s *WorkflowService) mutate(ctx context.Context, ticketID string, fn func(context.Context, docstore.Tx, *domain.Ticket) error) (*domain.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}

	var err error
	for attempt := 1; attempt <= workflowAttempts; attempt++ {
		var updated *domain.Ticket
		err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			t, err := s.tickets.GetForUpdate(ctx, tx, ticketID)
			if err != nil {
				return err
			}
			number := t.TicketNumber
			if err := fn(ctx, tx, t); err != nil {
				return err
			}
			t.TicketNumber = number
			t.UpdatedAt = s.now().UTC()
			if t.UpdatedAt.Before(t.CreatedAt) {
				t.UpdatedAt = t.CreatedAt
			}
			if err := s.tickets.Save(tx, t); err != nil {
				return err
			}
			updated = t
			return nil
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			break
		}
		s.logger.Debug("ticket update conflict, retrying", zap.String("ticket_id", ticketID), zap.Int("attempt", attempt))
	}
	return nil, ticketError(ticketID, err)
}

func (s *WorkflowService) loadTarget(ctx context.Context, tx docstore.Tx, userID string) (*domain.User, error) {
	user, err := s.users.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, err
	}
	return user, nil
}

func (s *WorkflowService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor domain.Principal, payload interface{}) {
	if s.dispatcher == nil || ticket == nil {
		return
	}
	event := events.NewEvent(eventType, ticket, events.Actor{UserID: actor.UserID, Role: actor.Role}, payload)
	if err := s.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func requireTransition(t *domain.Ticket, to domain.TicketStatus) error {
	if domain.CanTransition(t.Status, to) {
		return nil
	}
	return apperrors.NewConflict("invalid status transition", map[string]any{
		"from": t.Status,
		"to":   to,
	})
}

func canReassign(actor domain.Principal, t *domain.Ticket) bool {
	if t.Status != domain.TicketStatusEscalated {
		return true
	}
	return actor.HasRole(domain.RoleSupervisor, domain.RoleAdmin) || t.AssignedToID == actor.UserID
}

func isAssignable(u *domain.User) bool {
	if u.Disabled || u.Availability != domain.AvailabilityAvailable {
		return false
	}
	return u.Role == domain.RoleTechnician || u.Role == domain.RoleSupervisor
}

func isEscalationTarget(actor domain.Principal, target *domain.User) bool {
	if target.ID == actor.UserID || target.Disabled || target.Availability != domain.AvailabilityAvailable {
		return false
	}
	if actor.Role == domain.RoleTechnician {
		return target.Role == domain.RoleTechnician || target.Role == domain.RoleSupervisor
	}
	return target.Role == domain.RoleSupervisor
}

func ticketError(ticketID string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return storeError(err)
}
