// Package api provides the HTTP API for CleanRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/api/handler"
	"github.com/cleanroute/cleanroute/internal/api/middleware"
	"github.com/cleanroute/cleanroute/internal/engine"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routecache"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Engine    *engine.Service
	Monitor   *monitor.Service
	Cache     *routecache.Cache
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing())            // Distributed tracing
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Cache, cfg.Monitor)
	optimizeHandler := handler.NewOptimizeHandler(cfg.Engine)
	subscriptionHandler := handler.NewSubscriptionHandler(cfg.Monitor)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Optimization endpoints - expensive compute
		r.Post("/routes:optimize", optimizeHandler.Optimize)
		r.Post("/routes:optimize-batch", optimizeHandler.OptimizeBatch)

		// Monitoring subscriptions
		r.Route("/monitor/subscriptions", func(r chi.Router) {
			r.Post("/", subscriptionHandler.Subscribe)
			r.Route("/{subscriptionId}", func(r chi.Router) {
				r.Get("/", subscriptionHandler.GetSubscription)
				r.Delete("/", subscriptionHandler.Unsubscribe)
			})
		})
	})

	return r
}
