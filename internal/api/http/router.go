package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/vendor-desk/internal/api/http/handlers"
	"github.com/spec-kit/vendor-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Vendors        *handlers.VendorsHandler
	Customers      *handlers.CustomersHandler
	Assignments    *handlers.AssignmentsHandler
	ActiveVendor   *handlers.ActiveVendorHandler
	Conversations  *handlers.ConversationsHandler
	Webhook        *handlers.WebhookHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	// Chains are attached per route; a prefix-less group would leak its
	// middleware onto every later /api route.
	admin := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAdmin()}
	vendor := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireVendor()}
	self := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireVendorSelf("uid")}
	with := func(chain []fiber.Handler, h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, chain...), h)
	}

	api := app.Group("/api")

	api.Post("/vendor/login", cfg.Auth.VendorLogin)
	api.Post("/admin/login", cfg.Auth.AdminLogin)
	api.Post("/vendor/logout", with(vendor, cfg.Auth.Logout)...)

	api.Post("/sync-vendors", with(admin, cfg.Vendors.Sync)...)
	api.Post("/admin/add-vendor", with(admin, cfg.Vendors.Add)...)
	api.Get("/vendors", with(admin, cfg.Vendors.List)...)
	api.Get("/vendors/:uid", with(admin, cfg.Vendors.Get)...)
	api.Get("/customers", with(admin, cfg.Customers.List)...)

	api.Get("/customer-vendor-assignments", with(admin, cfg.Assignments.List)...)
	api.Post("/assign-customer-to-vendor", with(admin, cfg.Assignments.Assign)...)
	api.Delete("/customer-vendor-assignments/:customerUid", with(admin, cfg.Assignments.Unassign)...)

	api.Get("/vendor/active", cfg.ActiveVendor.Current)
	api.Post("/vendor/set-active", with(vendor, cfg.ActiveVendor.SetActive)...)

	api.Get("/vendor/conversations/:customerUid/messages", with(vendor, cfg.Conversations.History)...)
	api.Post("/vendor/conversations/:customerUid/messages", with(vendor, cfg.Conversations.Send)...)
	api.Get("/vendor/conversations/:customerUid/events", with(vendor, cfg.Conversations.Events)...)

	// registered after the static /vendor/* routes
	api.Get("/vendor/:uid/customers", with(self, cfg.Assignments.VendorCustomers)...)

	api.Post("/webhooks/chat", cfg.Webhook.Receive)
}
