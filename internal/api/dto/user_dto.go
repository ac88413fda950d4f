package dto

import (
	"time"

	"github.com/tdhs/helpdesk-service/internal/domain"
)

// LoginRequest payload for local staff sign-in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserSummaryResponse is a display reference to a staff member.
type UserSummaryResponse struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
	Unknown bool        `json:"unknown,omitempty"`
}

// UserResponse is a full staff account without credentials.
type UserResponse struct {
	ID           string              `json:"id"`
	UID          string              `json:"uid,omitempty"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         domain.Role         `json:"role"`
	Availability domain.Availability `json:"availability"`
	Avatar       string              `json:"avatar,omitempty"`
	PersalNumber string              `json:"persal_number,omitempty"`
	PhoneNumber  string              `json:"phone_number,omitempty"`
	Disabled     bool                `json:"disabled"`
}

// ResolveUsersRequest asks for display summaries of user ids.
type ResolveUsersRequest struct {
	IDs []string `json:"ids"`
}
