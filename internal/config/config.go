// Package config loads service configuration from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tripmap/tripmap/internal/database"
)

// Directions providers selectable with ROUTES_PROVIDER.
const (
	ProviderGoogleMaps       = "googlemaps"
	ProviderOpenRouteService = "openrouteservice"
)

// ErrMissingAPIKey is returned by Validate when the selected provider has no key.
var ErrMissingAPIKey = errors.New("an API key for the routes provider is required")

// Config holds settings shared by the API server, the worker, and tripctl.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	GoogleMapsAPIKey       string
	OpenRouteServiceAPIKey string
	Routes                 RoutesConfig

	CORSAllowedOrigins []string
	RateLimitPerMinute int

	RouteCacheEnabled bool
	Database          database.Config

	Telemetry TelemetryConfig
	PubSub    PubSubConfig

	// BackendURL is where clients find GET /routes.
	BackendURL string
}

// RoutesConfig tunes the route finder.
type RoutesConfig struct {
	Provider        string
	Region          string
	MaxResults      int
	IntercityKm     float64
	CacheTTL        time.Duration
	StaleIfErrorTTL time.Duration
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// PubSubConfig identifies the cache-warm subscription.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Load reads .env then .env.local (which overrides it) when present, and
// builds a Config from the resulting environment. Variables already set in
// the process environment win over .env but not over .env.local.
func Load() (Config, error) {
	if err := loadFile(".env", godotenv.Load); err != nil {
		return Config{}, err
	}
	if err := loadFile(".env.local", godotenv.Overload); err != nil {
		return Config{}, err
	}
	return FromEnv(), nil
}

func loadFile(name string, load func(...string) error) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return load(name)
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	return Config{
		Port:     getEnvOrDefault("APP_PORT", "8000"),
		Env:      getEnvOrDefault("APP_ENV", "development"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		GoogleMapsAPIKey:       os.Getenv("GOOGLE_MAPS_API_KEY"),
		OpenRouteServiceAPIKey: os.Getenv("ORS_API_KEY"),
		Routes: RoutesConfig{
			Provider:        strings.ToLower(getEnvOrDefault("ROUTES_PROVIDER", ProviderGoogleMaps)),
			Region:          getEnvOrDefault("ROUTES_REGION", "sa"),
			MaxResults:      getInt("ROUTES_MAX_RESULTS", 3),
			IntercityKm:     getFloat("ROUTES_INTERCITY_KM", 50),
			CacheTTL:        getDuration("ROUTES_CACHE_TTL", 5*time.Minute),
			StaleIfErrorTTL: getDuration("ROUTES_STALE_IF_ERROR_TTL", 15*time.Minute),
		},

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),

		RouteCacheEnabled: getBool("ROUTE_CACHE_ENABLED", false),
		Database:          database.ConfigFromEnv(),

		Telemetry: TelemetryConfig{
			Enabled:      getBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "route-warm-jobs"),
		},

		BackendURL: getEnvOrDefault("TRIP_BACKEND_URL", "http://127.0.0.1:8000"),
	}
}

// Validate checks the settings every route-finding process needs.
func (c Config) Validate() error {
	switch c.Routes.Provider {
	case ProviderGoogleMaps, "":
		if c.GoogleMapsAPIKey == "" {
			return fmt.Errorf("%w: set GOOGLE_MAPS_API_KEY", ErrMissingAPIKey)
		}
	case ProviderOpenRouteService:
		if c.OpenRouteServiceAPIKey == "" {
			return fmt.Errorf("%w: set ORS_API_KEY", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("unknown ROUTES_PROVIDER %q", c.Routes.Provider)
	}
	if c.Routes.MaxResults <= 0 {
		return errors.New("ROUTES_MAX_RESULTS must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
