package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/orgadmin/backend/internal/config"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/handler"
	appMiddleware "github.com/orgadmin/backend/internal/middleware"
	"github.com/orgadmin/backend/internal/ws"
)

type routes struct {
	auth          appMiddleware.TokenVerifier
	health        *handler.HealthHandler
	authHandler   *handler.AuthHandler
	checkout      *handler.CheckoutHandler
	catalog       *handler.CatalogHandler
	admin         *handler.AdminHandler
	webhook       *handler.WebhookHandler
	notifications *ws.NotificationsHandler
}

func newRouter(ctx context.Context, cfg *config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	r.Use(appMiddleware.NewRateLimiter(ctx, 20, 40).Middleware())

	r.Get("/health", h.health.Check)
	r.Get("/api/catalog/plans", h.catalog.Plans)
	r.Get("/api/catalog/modules", h.catalog.Modules)
	r.Post("/api/payment/webhook", h.webhook.Stripe)

	// Checkout is reached by buyers who are not signed in yet.
	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/", h.checkout.Start)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.checkout.Get)
			r.Delete("/", h.checkout.Abandon)
			r.Put("/method", h.checkout.SelectMethod)
			r.Get("/notifications", h.notifications.Handle)
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.StrictRateLimiter(ctx))
				r.Post("/submit", h.checkout.Submit)
				r.Post("/confirm", h.checkout.Confirm)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx))
		r.Post("/api/auth/login", h.authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(h.auth))
		r.Get("/api/auth/me", h.authHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireRole(domain.RoleAdmin, domain.RoleSupport))
			r.Get("/api/admin/stats", h.admin.GetStats)
			r.Get("/api/admin/reconciliation-failures", h.admin.ListFailures)
			r.Post("/api/admin/reconciliation-failures/{id}/resolve", h.admin.ResolveFailure)
			r.Get("/api/admin/organizations/{id}/subscription", h.admin.OrganizationSubscription)
		})
	})

	return r
}
