package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/api/dto"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/service"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

// UsersHandler exposes sign-in and staff directory endpoints.
type UsersHandler struct {
	auth   *service.AuthService
	staff  *service.StaffService
	lookup *service.LookupService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, staff *service.StaffService, lookup *service.LookupService) *UsersHandler {
	return &UsersHandler{auth: authService, staff: staff, lookup: lookup}
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /staff/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	refs := h.lookup.ResolveUserRefs(c.UserContext(), []string{principal.UserID})
	summary := refs[principal.UserID]
	return c.JSON(fiber.Map{"data": dto.NewUserSummary(&summary)})
}

// List handles GET /staff/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.lookup.ListStaff(c.UserContext(), domain.Role(c.Query("role")))
	if err != nil {
		return err
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create handles POST /staff/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req service.CreateStaffInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.auth.CreateStaffUser(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Update handles PATCH /staff/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req service.UpdateStaffInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.staff.UpdateStaffUser(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Delete handles DELETE /staff/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	principal, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.staff.DeleteStaffUser(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Resolve handles POST /staff/users/resolve.
func (h *UsersHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	refs := h.lookup.ResolveUserRefs(c.UserContext(), req.IDs)
	resp := make(map[string]*dto.UserSummaryResponse, len(refs))
	for id, summary := range refs {
		resp[id] = dto.NewUserSummary(&summary)
	}
	return c.JSON(fiber.Map{"data": resp})
}
