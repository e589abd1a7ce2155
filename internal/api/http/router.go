package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Feedback       *handlers.FeedbackHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")
	api.Post("/auth/login", cfg.Auth.Login)

	// scopes are checked per route; a shared group prefix would stack them
	read := scoped(cfg.AuthMiddleware, auth.ScopeRead)
	api.Get("/tickets", read(cfg.Tickets.ListTickets)...)
	api.Get("/tickets/:id", read(cfg.Tickets.GetTicket)...)
	api.Get("/tickets/:id/history", read(cfg.Tickets.GetHistory)...)
	api.Get("/moderators/:id/feedback", read(cfg.Feedback.ModeratorFeedback)...)
	api.Get("/metrics", read(cfg.Admin.Metrics)...)

	admin := scoped(cfg.AuthMiddleware, auth.ScopeAdmin)
	api.Post("/tickets/prune", admin(cfg.Tickets.Prune)...)
	api.Delete("/tickets/:id", admin(cfg.Tickets.Purge)...)
	api.Get("/admin/settings", admin(cfg.Admin.GetSettings)...)
	api.Patch("/admin/settings", admin(cfg.Admin.PatchSettings)...)
	api.Post("/admin/setup", admin(cfg.Admin.Setup)...)
	api.Post("/admin/reset", admin(cfg.Admin.Reset)...)
	api.Post("/admin/teardown", admin(cfg.Admin.Teardown)...)
}

func scoped(mw *auth.AuthMiddleware, need auth.Scope) func(fiber.Handler) []fiber.Handler {
	return func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{mw.Handle, auth.RequireScope(need), h}
	}
}
