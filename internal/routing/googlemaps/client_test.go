package googlemaps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
)

const directionsBody = `{
  "status": "OK",
  "geocoded_waypoints": [],
  "routes": [
    {
      "summary": "Route 40",
      "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC"},
      "bounds": {
        "northeast": {"lat": 40.7, "lng": -120.2},
        "southwest": {"lat": 38.5, "lng": -120.95}
      },
      "legs": [
        {
          "distance": {"text": "950 km", "value": 950123},
          "duration": {"text": "9 hours 5 mins", "value": 32700},
          "steps": []
        }
      ]
    },
    {
      "summary": "",
      "overview_polyline": {"points": "_ulLnnqC"},
      "bounds": {
        "northeast": {"lat": 40.7, "lng": -120.2},
        "southwest": {"lat": 40.7, "lng": -120.2}
      },
      "legs": [
        {
          "distance": {"text": "1,010 km", "value": 1010000},
          "duration": {"text": "10 hours", "value": 36000},
          "steps": []
        }
      ]
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		APIKey:  "AIzaFake",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestGetDirections_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Jeddah", q.Get("origin"))
		assert.Equal(t, "Riyadh", q.Get("destination"))
		assert.Equal(t, "driving", q.Get("mode"))
		assert.Equal(t, "true", q.Get("alternatives"))
		assert.Equal(t, "sa", q.Get("region"))
		assert.Equal(t, "AIzaFake", q.Get("key"))
		assert.Empty(t, q.Get("avoid"))
		assert.Empty(t, q.Get("departure_time"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(directionsBody))
	})

	resp, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:       "Jeddah",
		Destination:  "Riyadh",
		Alternatives: true,
		Region:       "sa",
	})
	require.NoError(t, err)
	require.Len(t, resp.Routes, 2)
	assert.Equal(t, ProviderName, resp.Provider)

	first := resp.Routes[0]
	assert.Equal(t, "Route 40", first.Summary)
	assert.Equal(t, "950 km", first.DistanceText)
	assert.Equal(t, "9 hours 5 mins", first.DurationText)
	assert.Equal(t, 950123, first.DistanceMeters)
	assert.Equal(t, 32700, first.DurationSeconds)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC", first.Polyline)
	require.NotNil(t, first.BoundingBox)
	assert.Equal(t, 38.5, first.BoundingBox.MinLat)
	assert.Equal(t, -120.2, first.BoundingBox.MaxLon)

	assert.Empty(t, resp.Routes[1].Summary)
	assert.Equal(t, "10 hours", resp.Routes[1].DurationText)
}

func TestGetDirections_StrategyParameters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tolls", q.Get("avoid"))
		assert.Equal(t, "now", q.Get("departure_time"))
		assert.Equal(t, "pessimistic", q.Get("traffic_model"))
		_, _ = w.Write([]byte(directionsBody))
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:       "Olaya",
		Destination:  "Kingdom Centre",
		Alternatives: true,
		Avoid:        routing.AvoidTolls,
		DepartNow:    true,
		TrafficModel: routing.TrafficPessimistic,
	})
	require.NoError(t, err)
}

func TestGetDirections_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "zero results", body: `{"status":"ZERO_RESULTS","routes":[]}`, wantErr: routing.ErrNoRouteFound},
		{name: "not found", body: `{"status":"NOT_FOUND","routes":[]}`, wantErr: routing.ErrNoRouteFound},
		{name: "over query limit", body: `{"status":"OVER_QUERY_LIMIT","error_message":"slow down"}`, wantErr: routing.ErrRateLimitExceeded},
		{name: "request denied", body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`, wantErr: routing.ErrProviderUnavailable},
		{name: "invalid request", body: `{"status":"INVALID_REQUEST"}`, wantErr: routing.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      "Jeddah",
				Destination: "Atlantis",
			})
			require.Error(t, err)

			var routingErr *routing.Error
			require.True(t, errors.As(err, &routingErr))
			assert.Equal(t, ProviderName, routingErr.Provider)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetDirections_InvalidRequest(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("provider should not be called")
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{Origin: "Jeddah"})
	assert.ErrorIs(t, err, routing.ErrInvalidRequest)
}

func TestGetDirections_RegistryTracksOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(directionsBody))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client, err := NewClient(ClientConfig{
		APIKey:   "AIzaFake",
		BaseURL:  server.URL,
		Registry: registry,
	})
	require.NoError(t, err)

	_, err = client.GetDirections(context.Background(), routing.DirectionsRequest{Origin: "Jeddah", Destination: "Riyadh"})
	require.NoError(t, err)

	health := registry.GetHealth(ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		switch r.URL.Query().Get("address") {
		case "Riyadh":
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Riyadh Saudi Arabia","geometry":{"location":{"lat":24.7136,"lng":46.6753}}}]}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}
	})

	c, err := client.Geocode(context.Background(), "Riyadh")
	require.NoError(t, err)
	assert.Equal(t, 24.7136, c.Lat)
	assert.Equal(t, 46.6753, c.Lon)

	_, err = client.Geocode(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, routing.ErrPlaceNotFound)
}
