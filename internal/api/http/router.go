package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tdhs/helpdesk-service/internal/api/http/handlers"
	"github.com/tdhs/helpdesk-service/internal/auth"
	"github.com/tdhs/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Public         *handlers.PublicTicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// LocalLogin enables POST /auth/login; Firebase deployments sign in on the client.
	LocalLogin bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	public := app.Group("/public")
	public.Post("/tickets", cfg.Public.Submit)
	public.Get("/tickets/:number", cfg.Public.Track)

	if cfg.LocalLogin {
		app.Post("/auth/login", cfg.Users.Login)
	}

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireRole())
	staff.Get("/me", cfg.Users.Me)

	staff.Get("/overview", cfg.StaffTickets.Overview)
	staff.Get("/tickets", cfg.StaffTickets.ListTickets)
	staff.Post("/tickets", auth.RequireRole(domain.RoleHelpDesk, domain.RoleSupervisor, domain.RoleAdmin), cfg.StaffTickets.LogTicket)
	staff.Get("/tickets/:id", cfg.StaffTickets.GetTicket)
	staff.Post("/tickets/:id/assign", cfg.StaffTickets.Assign)
	staff.Post("/tickets/:id/escalate", cfg.StaffTickets.Escalate)
	staff.Post("/tickets/:id/resolve", cfg.StaffTickets.Resolve)
	staff.Post("/tickets/:id/close", cfg.StaffTickets.Close)
	staff.Post("/tickets/:id/diagnose", cfg.StaffTickets.Diagnose)
	staff.Delete("/tickets/:id", cfg.StaffTickets.Delete)

	staff.Get("/users", cfg.Users.List)
	staff.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)
	staff.Post("/users/resolve", cfg.Users.Resolve)
	staff.Patch("/users/:id", auth.RequireRole(domain.RoleAdmin), cfg.Users.Update)
	staff.Delete("/users/:id", auth.RequireRole(domain.RoleAdmin), cfg.Users.Delete)
}
