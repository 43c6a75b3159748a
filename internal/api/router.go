// Package api provides the HTTP API for tripmap.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/api/handler"
	"github.com/tripmap/tripmap/internal/api/middleware"
	"github.com/tripmap/tripmap/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Finder answers GET /routes. Usually a *routing.Service.
	Finder handler.RouteFinder
	// Cache reports route cache statistics on /ops/status (optional).
	Cache handler.CacheStatsSource
	// Registry reports provider health on /ops/status (default: resilience.GlobalRegistry).
	Registry *resilience.Registry
	// ReadinessChecks run on /ops/ready (optional).
	ReadinessChecks map[string]handler.ReadinessCheck

	CORSAllowedOrigins []string
	RoutesRateLimit    middleware.RateLimitConfig
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tripmap-api"
	}

	// Order matters: the request ID must exist before tracing and logging read it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Cache:     cfg.Cache,
		Checks:    cfg.ReadinessChecks,
	})

	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	if cfg.Finder != nil {
		routeHandler := handler.NewRouteHandler(cfg.Finder, cfg.Logger)
		r.With(middleware.RateLimitByIP(cfg.RoutesRateLimit)).Get("/routes", routeHandler.GetRoutes)
	}

	return r
}
