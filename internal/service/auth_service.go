package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tdhs/helpdesk-service/internal/auth"
	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// CreateStaffInput describes a new staff account.
type CreateStaffInput struct {
	ID           string      `json:"id"`
	UID          string      `json:"uid"`
	Name         string      `json:"name" validate:"required,utf8"`
	Email        string      `json:"email" validate:"required,email"`
	Role         domain.Role `json:"role" validate:"required,oneof=Admin Technician Supervisor 'Help Desk'"`
	Password     string      `json:"password" validate:"omitempty,min=8"`
	PersalNumber string      `json:"persal_number"`
	PhoneNumber  string      `json:"phone_number"`
}

// AuthService coordinates local staff credentials.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	validate   *validator.Validate
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		validate:   newValidator(),
	}
}

// LoginStaff authenticates staff and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("email and password required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, storeError(err)
	}
	if user.PasswordHash == "" || auth.ComparePassword(user.PasswordHash, password) != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Disabled {
		return nil, "", time.Time{}, apperrors.NewForbidden("account disabled")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// CreateStaffUser stores a new staff account. A password is only needed for
// the local identity provider; Firebase accounts are matched by UID.
func (s *AuthService) CreateStaffUser(ctx context.Context, input CreateStaffInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid staff user", err)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, storeError(err)
	}

	user := &domain.User{
		ID:           strings.TrimSpace(input.ID),
		UID:          strings.TrimSpace(input.UID),
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		Availability: domain.AvailabilityAvailable,
		PersalNumber: input.PersalNumber,
		PhoneNumber:  input.PhoneNumber,
	}
	if input.Password != "" {
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperrors.NewConflict("user id already taken", map[string]any{"id": user.ID})
		}
		return nil, storeError(err)
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
