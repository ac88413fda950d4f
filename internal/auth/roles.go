package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/domain"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles. With no
// roles it only requires authentication.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) > 0 && !principal.HasRole(allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
