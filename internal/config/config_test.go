package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_PORT", "GOOGLE_MAPS_API_KEY", "ROUTES_REGION", "ROUTES_MAX_RESULTS",
		"ROUTES_INTERCITY_KM", "CORS_ALLOWED_ORIGINS", "ROUTE_CACHE_ENABLED", "TRIP_BACKEND_URL",
		"ROUTES_PROVIDER", "ORS_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, ProviderGoogleMaps, cfg.Routes.Provider)
	assert.Equal(t, "sa", cfg.Routes.Region)
	assert.Equal(t, 3, cfg.Routes.MaxResults)
	assert.Equal(t, 50.0, cfg.Routes.IntercityKm)
	assert.Equal(t, 5*time.Minute, cfg.Routes.CacheTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RouteCacheEnabled)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.BackendURL)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("GOOGLE_MAPS_API_KEY", "AIzaFake")
	t.Setenv("ROUTES_REGION", "ae")
	t.Setenv("ROUTES_MAX_RESULTS", "5")
	t.Setenv("ROUTES_INTERCITY_KM", "80.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://maps.example.com , ,https://admin.example.com")
	t.Setenv("ROUTE_CACHE_ENABLED", "true")
	t.Setenv("ROUTES_CACHE_TTL", "90s")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "ae", cfg.Routes.Region)
	assert.Equal(t, 5, cfg.Routes.MaxResults)
	assert.Equal(t, 80.5, cfg.Routes.IntercityKm)
	assert.Equal(t, 90*time.Second, cfg.Routes.CacheTTL)
	assert.Equal(t, []string{"https://maps.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.RouteCacheEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ROUTES_MAX_RESULTS", "many")
	t.Setenv("ROUTE_CACHE_ENABLED", "sometimes")

	cfg := FromEnv()

	assert.Equal(t, 3, cfg.Routes.MaxResults)
	assert.False(t, cfg.RouteCacheEnabled)
}

func TestValidate_MaxResults(t *testing.T) {
	cfg := Config{GoogleMapsAPIKey: "AIzaFake", Routes: RoutesConfig{MaxResults: 0}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_Provider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"google with key", Config{GoogleMapsAPIKey: "AIzaFake", Routes: RoutesConfig{Provider: ProviderGoogleMaps, MaxResults: 3}}, false},
		{"ors with key", Config{OpenRouteServiceAPIKey: "ors", Routes: RoutesConfig{Provider: ProviderOpenRouteService, MaxResults: 3}}, false},
		{"ors without key", Config{GoogleMapsAPIKey: "AIzaFake", Routes: RoutesConfig{Provider: ProviderOpenRouteService, MaxResults: 3}}, true},
		{"unknown provider", Config{GoogleMapsAPIKey: "AIzaFake", Routes: RoutesConfig{Provider: "here", MaxResults: 3}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromEnv_ProviderIsCaseInsensitive(t *testing.T) {
	t.Setenv("ROUTES_PROVIDER", "OpenRouteService")
	t.Setenv("ORS_API_KEY", "ors")

	cfg := FromEnv()

	assert.Equal(t, ProviderOpenRouteService, cfg.Routes.Provider)
	assert.Equal(t, "ors", cfg.OpenRouteServiceAPIKey)
}

func TestLoad_DotEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ROUTES_REGION=qa\nAPP_PORT=7000\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("APP_PORT=7001\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// Registered with t.Setenv so the values loaded from files are restored afterwards.
	t.Setenv("ROUTES_REGION", "")
	t.Setenv("APP_PORT", "")
	require.NoError(t, os.Unsetenv("ROUTES_REGION"))
	require.NoError(t, os.Unsetenv("APP_PORT"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qa", cfg.Routes.Region)
	assert.Equal(t, "7001", cfg.Port, ".env.local overrides .env")
}

func TestLoad_NoFiles(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Load()
	assert.NoError(t, err)
}
