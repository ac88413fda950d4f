package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/repository"
	apperrors "github.com/tdhs/helpdesk-service/pkg/util/errorutil"
)

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(docstore.NewMemoryStore())
	tokens := NewTokenManager("test-secret", 5)
	mw := NewAuthMiddleware(tokens, users)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/me", mw.Handle, RequireRole(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(string(p.Role))
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, tokens, users
}

func bearer(t *testing.T, tokens *TokenManager, user *domain.User) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens, users := newTestApp(t)
	ctx := context.Background()

	tech := &domain.User{ID: "tech-1", Name: "Lerato", Role: domain.RoleTechnician}
	disabled := &domain.User{ID: "tech-2", Name: "Pieter", Role: domain.RoleTechnician, Disabled: true}
	for _, u := range []*domain.User{tech, disabled} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	ghost := &domain.User{ID: "ghost", Role: domain.RoleAdmin}

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"unknown user", "/me", bearer(t, tokens, ghost), fiber.StatusUnauthorized},
		{"disabled user", "/me", bearer(t, tokens, disabled), fiber.StatusForbidden},
		{"valid user", "/me", bearer(t, tokens, tech), fiber.StatusOK},
		{"insufficient role", "/admin", bearer(t, tokens, tech), fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestTokenFromAnotherSecretRejected(t *testing.T) {
	user := &domain.User{ID: "u-1", Role: domain.RoleAdmin}
	other := NewTokenManager("other-secret", 5)
	token, _, err := other.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("test-secret", 5).VerifyToken(context.Background(), token); err == nil {
		t.Fatal("expected signature failure")
	}
	identity, err := other.VerifyToken(context.Background(), token)
	if err != nil || identity.UserID != "u-1" {
		t.Fatalf("expected u-1, got %+v %v", identity, err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}
