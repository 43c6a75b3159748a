// Package providers builds the configured directions provider.
package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/config"
	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
	"github.com/tripmap/tripmap/internal/routing/googlemaps"
	"github.com/tripmap/tripmap/internal/routing/openrouteservice"
	"github.com/tripmap/tripmap/internal/telemetry"
)

// Geocode cache sizing shared by every provider.
const (
	geocodeCacheSize = 1000
	geocodeCacheTTL  = 24 * time.Hour
)

// Provider is a directions provider that can also geocode places.
type Provider interface {
	routing.Provider
	routing.Geocoder
}

// New returns the provider selected by cfg.Routes.Provider. Its resilient
// transport registers with registry when registry is non-nil.
func New(cfg config.Config, registry *resilience.Registry, logger zerolog.Logger) (Provider, error) {
	switch cfg.Routes.Provider {
	case config.ProviderGoogleMaps, "":
		client, err := googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   cfg.GoogleMapsAPIKey,
			Region:   cfg.Routes.Region,
			Registry: registry,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenRouteService:
		if cfg.OpenRouteServiceAPIKey == "" {
			return nil, fmt.Errorf("openrouteservice: %w", config.ErrMissingAPIKey)
		}
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.OpenRouteServiceAPIKey,
			Country:  strings.ToUpper(cfg.Routes.Region),
			Registry: registry,
			Logger:   logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown routes provider %q", cfg.Routes.Provider)
	}
}

// NewService wires the configured provider into a route finder. store may be nil.
func NewService(cfg config.Config, p Provider, store routing.Store, metrics *telemetry.ProviderMetrics, logger zerolog.Logger) *routing.Service {
	return routing.NewService(routing.ServiceConfig{
		Provider:             p,
		Geocoder:             routing.NewCachedGeocoder(p, geocodeCacheSize, geocodeCacheTTL),
		Store:                store,
		Metrics:              metrics,
		Logger:               logger,
		Region:               cfg.Routes.Region,
		MaxResults:           cfg.Routes.MaxResults,
		IntercityThresholdKm: cfg.Routes.IntercityKm,
		CacheTTL:             cfg.Routes.CacheTTL,
		StaleIfErrorTTL:      cfg.Routes.StaleIfErrorTTL,
	})
}
