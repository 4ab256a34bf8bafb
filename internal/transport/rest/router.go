package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/auth"
	"github.com/thaohienhomes/phochat-payments/internal/ledger"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	"github.com/thaohienhomes/phochat-payments/internal/reconcile"
	"github.com/thaohienhomes/phochat-payments/internal/transport/middleware"
	"github.com/thaohienhomes/phochat-payments/internal/transport/swagger"
	"github.com/thaohienhomes/phochat-payments/internal/webhook"
)

// Routes holds everything the HTTP surface is built from. Nil handlers are
// left unmounted.
type Routes struct {
	Health    *HealthHandler
	Webhook   *webhook.Handler
	Orders    *order.Handler
	Reconcile *reconcile.Handler
	Ledger    *ledger.Handler

	Tokens     auth.TokenVerifier
	AdminGuard *auth.AdminTokenGuard

	AllowedOrigins string
	MetricsPath    string
	Gatherer       prometheus.Gatherer
	OpenAPIPath    string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	if routes.MetricsPath != "" && routes.Gatherer != nil {
		router.Handle(routes.MetricsPath, promhttp.HandlerFor(routes.Gatherer, promhttp.HandlerOpts{}))
	}

	if routes.OpenAPIPath != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, routes.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(logger))

		if routes.Health != nil {
			r.Get("/health", routes.Health.healthCheckHandler)
			r.Get("/ping", routes.Health.pingHandler)
		}

		// Provider deliveries authenticate by checksum, not by token.
		if routes.Webhook != nil {
			r.Post("/payos/webhook", routes.Webhook.Receive)
		}

		if routes.Orders != nil && routes.Tokens != nil {
			r.Route("/orders", func(or chi.Router) {
				or.Use(middleware.OptionalUser(routes.Tokens, logger))

				or.Post("/", routes.Orders.CreateOrder)
				or.Get("/status", routes.Orders.GetStatus)

				or.Group(func(ur chi.Router) {
					ur.Use(middleware.RequireUser(logger))
					ur.Get("/{id}", routes.Orders.GetOrder)
				})

				or.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireRole(errors.RoleAdmin, logger))
					ar.Get("/", routes.Orders.ListOrders)
				})
			})
		}

		if routes.AdminGuard != nil {
			r.Route("/admin", func(ar chi.Router) {
				if routes.Reconcile != nil {
					ar.Get("/reconcile-cron", routes.Reconcile.CronProbe)
				}

				ar.Group(func(gr chi.Router) {
					gr.Use(middleware.RequireAdminToken(routes.AdminGuard, logger))

					if routes.Reconcile != nil {
						gr.Post("/reconcile", routes.Reconcile.Reconcile)
						gr.Post("/reconcile-cron", routes.Reconcile.ReconcileCron)
					}
					if routes.Ledger != nil {
						gr.Get("/orders/{orderCode}/events", routes.Ledger.ListOrderEvents)
					}
				})
			})
		}
	})
}
