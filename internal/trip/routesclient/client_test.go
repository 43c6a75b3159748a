package routesclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmap/tripmap/internal/provider/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	return client
}

func TestFetchRoutes_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/routes", r.URL.Path)
		assert.Equal(t, "Jeddah", r.URL.Query().Get("origin"))
		assert.Equal(t, "Riyadh", r.URL.Query().Get("destination"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"routes":[{"distance":"950 km","duration":"9 hr","polyline":"_p~iF~ps|U"}]}`))
	})

	routes, err := client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "950 km", routes[0].Distance)
	assert.Equal(t, "9 hr", routes[0].Duration)
	assert.Equal(t, "_p~iF~ps|U", routes[0].Polyline)
	assert.Empty(t, routes[0].Summary)
}

func TestFetchRoutes_EmptyErrorFieldKeepsRoutes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"summary":"Route 40","distance":"950 km","duration":"9 hr","polyline":"_p~iF~ps|U"}],"error":""}`))
	})

	routes, err := client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "Route 40", routes[0].Summary)
}

func TestFetchRoutes_EncodesPlaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "origin=King+Fahd+Rd%2C+Riyadh")
		assert.Equal(t, "حي العليا & co", r.URL.Query().Get("destination"))
		_, _ = w.Write([]byte(`{"routes":[]}`))
	})

	_, err := client.FetchRoutes(context.Background(), "King Fahd Rd, Riyadh", "حي العليا & co")
	require.NoError(t, err)
}

func TestFetchRoutes_EmptyResults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty array", body: `{"routes":[]}`},
		{name: "missing field", body: `{}`},
		{name: "null error", body: `{"routes":[],"error":null}`},
		{name: "empty error", body: `{"routes":[],"error":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			routes, err := client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
			require.NoError(t, err)
			assert.NotNil(t, routes)
			assert.Empty(t, routes)
		})
	}
}

func TestFetchRoutes_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    Kind
		wantMessage string
		wantIs      error
	}{
		{
			name:        "not found with error body",
			status:      http.StatusNotFound,
			body:        `{"error":"No route found"}`,
			wantKind:    KindBackend,
			wantMessage: "No route found",
			wantIs:      ErrBackendError,
		},
		{
			name:        "error field on success status",
			status:      http.StatusOK,
			body:        `{"routes":[],"error":"quota exhausted"}`,
			wantKind:    KindBackend,
			wantMessage: "quota exhausted",
			wantIs:      ErrBackendError,
		},
		{
			name:        "server error without body",
			status:      http.StatusInternalServerError,
			body:        ``,
			wantKind:    KindNetwork,
			wantMessage: GenericMessage,
			wantIs:      ErrNetworkFailure,
		},
		{
			name:        "gateway error with html",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			wantKind:    KindNetwork,
			wantMessage: GenericMessage,
			wantIs:      ErrNetworkFailure,
		},
		{
			name:        "malformed success body",
			status:      http.StatusOK,
			body:        `{"routes":`,
			wantKind:    KindNetwork,
			wantMessage: GenericMessage,
			wantIs:      ErrNetworkFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			routes, err := client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
			require.Error(t, err)
			assert.Nil(t, routes)

			var fetchErr *Error
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.wantKind, fetchErr.Kind)
			assert.Equal(t, tt.status, fetchErr.Status)
			assert.Equal(t, tt.wantMessage, err.Error())
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestFetchRoutes_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	registry := resilience.NewRegistry()
	client, err := New(Config{BaseURL: base, Registry: registry})
	require.NoError(t, err)

	_, err = client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
	require.Error(t, err)
	assert.Equal(t, GenericMessage, err.Error())
	assert.ErrorIs(t, err, ErrNetworkFailure)

	health := registry.GetHealth(ClientName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
}

func TestFetchRoutes_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchRoutes(context.Background(), "Jeddah", "Riyadh")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRoutes_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchRoutes(ctx, "Jeddah", "Riyadh")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestNew_BaseURLWithPath(t *testing.T) {
	client, err := New(Config{BaseURL: "http://backend.local/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://backend.local/api/routes", client.endpoint)
}
