package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	verifier Verifier
	users    repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier Verifier, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	identity, err := m.verifier.VerifyToken(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.loadUser(c.UserContext(), identity)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		if errors.Is(err, docstore.ErrUnavailable) {
			return apperrors.NewStoreUnavailable(err)
		}
		return apperrors.MapError(err)
	}
	if user.Disabled {
		return apperrors.NewForbidden("account disabled")
	}

	c.Locals(principalKey, domain.Principal{
		UserID: user.ID,
		UID:    user.UID,
		Role:   user.Role,
		Email:  user.Email,
	})
	return c.Next()
}

func (m *AuthMiddleware) loadUser(ctx context.Context, identity Identity) (*domain.User, error) {
	if identity.UserID != "" {
		return m.users.GetByID(ctx, identity.UserID)
	}
	return m.users.GetByUID(ctx, identity.UID)
}

// PrincipalFromContext retrieves the authenticated staff member.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}
