// Package main provides the entrypoint for the TripMap cache warm worker.
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
	"github.com/tripmap/tripmap/internal/config"
	"github.com/tripmap/tripmap/internal/database"
	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
	"github.com/tripmap/tripmap/internal/routing/providers"
	"github.com/tripmap/tripmap/internal/routing/routecache"
	"github.com/tripmap/tripmap/internal/telemetry"
	"github.com/tripmap/tripmap/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripmap-worker"

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
	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TripMap worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	provider, err := providers.New(cfg, resilience.GlobalRegistry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create routes provider")
	}
	log.Info().Str("provider", provider.Name()).Msg("routes provider ready")

	checks := map[string]handler.ReadinessCheck{}

	// Without the shared cache, warming only fills this process's memory.
	var (
		store  routing.Store
		purger worker.Purger
	)
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
		store, purger = cache, cache
		checks["database"] = pool.Ping
	} else {
		log.Warn().Msg("ROUTE_CACHE_ENABLED is false; warmed routes are not shared with the API")
	}

	routes := providers.NewService(cfg, provider, store, providerMetrics, log)

	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.DefaultWarmConfig(),
		Finder: routes,
		Purger: purger,
		Logger: log,
	})

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		Processor: worker.NewProcessor(worker.ProcessorConfig{
			WarmJob:  warmJob,
			Registry: resilience.GlobalRegistry,
			Logger:   log,
		}),
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if closeErr := subscriber.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	// Cloud Run needs the worker to answer health probes.
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Version:         Version,
			BuildTime:       BuildTime,
			Logger:          log,
			ServiceName:     serviceName,
			Cache:           routes,
			Registry:        resilience.GlobalRegistry,
			ReadinessChecks: checks,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	receiveDone := make(chan error, 1)
	go func() {
		receiveDone <- subscriber.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case err := <-receiveDone:
		if err != nil {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	metrics := warmJob.GetMetrics()
	log.Info().
		Int64("runs", metrics.TotalRuns).
		Int64("warmed", metrics.Warmed).
		Int64("failed", metrics.Failed).
		Int64("purged", metrics.Purged).
		Msg("worker stopped")
}
