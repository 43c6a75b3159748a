// Package main provides the entrypoint for the TripMap routes API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/api"
	"github.com/tripmap/tripmap/internal/api/handler"
	"github.com/tripmap/tripmap/internal/api/middleware"
	"github.com/tripmap/tripmap/internal/config"
	"github.com/tripmap/tripmap/internal/database"
	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
	"github.com/tripmap/tripmap/internal/routing/providers"
	"github.com/tripmap/tripmap/internal/routing/routecache"
	"github.com/tripmap/tripmap/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripmap-api"

	cfg, err := config.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		log = log.Level(level)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting TripMap API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	provider, err := providers.New(cfg, resilience.GlobalRegistry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create routes provider")
	}
	log.Info().Str("provider", provider.Name()).Msg("routes provider ready")

	checks := map[string]handler.ReadinessCheck{}

	var store routing.Store
	if cfg.RouteCacheEnabled {
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		cache := routecache.NewPostgresStore(pool)
		if err := cache.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create route cache schema")
		}
		store = cache
		checks["database"] = pool.Ping

		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Database).
			Msg("shared route cache enabled")
	}

	routes := providers.NewService(cfg, provider, store, providerMetrics, log)

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            httpMetrics,
		Finder:             routes,
		Cache:              routes,
		Registry:           resilience.GlobalRegistry,
		ReadinessChecks:    checks,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RoutesRateLimit: middleware.RateLimitConfig{
			RequestLimit: cfg.RateLimitPerMinute,
			WindowLength: time.Minute,
		},
		RequireTLS: cfg.IsProduction(),
	})

	// Route searches fan out to several Directions calls, so writes get more room.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
