package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Schedulers     *handlers.SchedulerHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.StaffRoleTechnician))
	lead := auth.RequireRole(domain.StaffRoleTeamLead)

	schedulers := admin.Group("/schedulers", lead)
	schedulers.Get("/health", cfg.Schedulers.Health)
	schedulers.Post("/:name/trigger", cfg.Schedulers.Trigger)
	schedulers.Get("/:name/status", cfg.Schedulers.Status)

	tickets := admin.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id/sla", cfg.Tickets.SLAStatus)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/assign", lead, cfg.Tickets.AutoAssign)
	tickets.Post("/:id/sla", lead, cfg.Tickets.ComputeDueDate)
}
