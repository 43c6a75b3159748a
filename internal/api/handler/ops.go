// Package handler provides HTTP handlers for the tripmap API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tripmap/tripmap/internal/api/models"
	"github.com/tripmap/tripmap/internal/api/response"
	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
)

// ReadinessCheck reports whether a dependency is ready to serve traffic.
type ReadinessCheck func(ctx context.Context) error

// CacheStatsSource exposes in-memory route cache statistics.
type CacheStatsSource interface {
	CacheStats() routing.CacheStats
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	cache     CacheStatsSource
	checks    map[string]ReadinessCheck
}

// OpsConfig configures an OpsHandler. Every field is optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Cache     CacheStatsSource
	Checks    map[string]ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	registry := cfg.Registry
	if registry == nil {
		registry = resilience.GlobalRegistry
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  registry,
		cache:     cfg.Cache,
		checks:    cfg.Checks,
	}
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /ops/ready. It runs every registered check
// (database ping and the like) and answers 503 if any fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := models.Health{Status: models.HealthStatusOK, Time: models.Timestamp(time.Now())}
	status := http.StatusOK

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			if health.Details == nil {
				health.Details = map[string]interface{}{}
			}
			health.Details[name] = err.Error()
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /ops/status - provider circuit breakers and cache.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    healthStatus(h.registry.Overall()),
		Time:      models.Timestamp(time.Now()),
		Providers: make([]models.ProviderStatus, 0, h.registry.ProviderCount()),
	}

	for _, ph := range h.registry.GetAllHealth() {
		ps := models.ProviderStatus{
			Provider:      ph.Name,
			Status:        healthStatus(ph.Status()),
			CircuitState:  ph.CircuitState.String(),
			LastSuccessAt: timestampPtr(ph.LastSuccessAt),
			LastFailureAt: timestampPtr(ph.LastFailureAt),
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		status.Providers = append(status.Providers, ps)
	}

	if h.cache != nil {
		stats := h.cache.CacheStats()
		status.Cache = &models.CacheStatus{
			Entries: stats.TotalEntries,
			Fresh:   stats.FreshEntries,
			Stale:   stats.StaleEntries,
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func healthStatus(label string) models.HealthStatus {
	switch label {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
