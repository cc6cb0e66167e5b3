package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Requests       *handlers.RequestsHandler
	Staff          *handlers.StaffRequestsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/register", cfg.Users.Register)
	app.Post("/auth/login", cfg.Users.Login)

	authenticated := app.Group("", cfg.AuthMiddleware.Authenticate())

	requests := authenticated.Group("/requests")
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/code/:code", cfg.Requests.GetByCode)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Get("/:id/timeline", cfg.Requests.Timeline)
	requests.Post("/:id/cancel", cfg.Requests.Cancel)
	requests.Post("/:id/close", cfg.Requests.Close)

	staff := authenticated.Group("/staff", auth.RequireStaff())
	staff.Get("/requests", cfg.Staff.List)
	staff.Get("/requests/:id", cfg.Staff.Get)
	staff.Patch("/requests/:id/status", cfg.Staff.UpdateStatus)
	staff.Patch("/requests/:id/priority", cfg.Staff.UpdatePriority)
	staff.Post("/requests/:id/assign/department", cfg.Staff.AssignDepartment)
	staff.Post("/requests/:id/assign/agent", cfg.Staff.AssignAgent)
	staff.Post("/requests/:id/escalate", cfg.Staff.Escalate)
	staff.Get("/sla/statistics", cfg.Staff.SLAStatistics)

	managers := staff.Group("", auth.RequireRole(domain.RoleManager, domain.RoleAdmin))
	managers.Post("/requests/:id/approve", cfg.Staff.Approve)
	managers.Post("/requests/:id/reject", cfg.Staff.Reject)

	admins := staff.Group("", auth.RequireRole(domain.RoleAdmin))
	admins.Delete("/requests/:id", cfg.Staff.Delete)
}
