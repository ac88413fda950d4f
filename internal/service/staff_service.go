package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/cache"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// UpdateStaffInput changes selected fields of a staff account. Nil fields are
// left as they are.
type UpdateStaffInput struct {
	Name         *string              `json:"name" validate:"omitnil,utf8,min=2"`
	Role         *domain.Role         `json:"role" validate:"omitnil,oneof=Admin Technician Supervisor 'Help Desk'"`
	Availability *domain.Availability `json:"availability" validate:"omitnil,oneof=Available 'On Leave'"`
	Disabled     *bool                `json:"disabled"`
}

// StaffService lets admins maintain staff accounts.
type StaffService struct {
	users    repository.UserRepository
	cache    cache.Cache
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStaffService constructs the service. c may be nil.
func NewStaffService(users repository.UserRepository, c cache.Cache, logger *zap.Logger) *StaffService {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{users: users, cache: c, validate: newValidator(), logger: logger}
}

func requireAdmin(actor domain.Principal) error {
	if !actor.HasRole(domain.RoleAdmin) {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// UpdateStaffUser applies input to the user. Administrator accounts cannot be
// disabled.
func (s *StaffService) UpdateStaffUser(ctx context.Context, actor domain.Principal, id string, input UpdateStaffInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid staff update", err)
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	wasAdmin := user.Role == domain.RoleAdmin
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Availability != nil {
		user.Availability = *input.Availability
	}
	if input.Disabled != nil {
		user.Disabled = *input.Disabled
	}
	if user.Disabled && (wasAdmin || user.Role == domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("administrator accounts cannot be disabled")
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, userError(id, err)
	}
	s.evict(ctx, id)
	s.logger.Info("staff user updated",
		zap.String("user_id", id),
		zap.String("by", actor.UserID),
		zap.String("role", string(user.Role)),
		zap.Bool("disabled", user.Disabled))
	return user, nil
}

// DeleteStaffUser removes a staff account. Tickets that reference it resolve
// the user as Unknown afterwards.
func (s *StaffService) DeleteStaffUser(ctx context.Context, actor domain.Principal, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		return apperrors.NewForbidden("administrator accounts cannot be deleted")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return userError(id, err)
	}
	s.evict(ctx, id)
	s.logger.Info("staff user deleted", zap.String("user_id", id), zap.String("by", actor.UserID))
	return nil
}

func (s *StaffService) load(ctx context.Context, id string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, userError(id, err)
	}
	return user, nil
}

func (s *StaffService) evict(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, userSummaryKeyPrefix+id); err != nil {
		s.logger.Debug("user summary cache evict failed", zap.String("user_id", id), zap.Error(err))
	}
}

func userError(id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return storeError(err)
}
