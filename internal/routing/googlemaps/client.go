// Package googlemaps implements routing.Provider and routing.Geocoder on the
// Google Maps Directions and Geocoding APIs.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "googlemaps"

	// DefaultTimeout is the default per-attempt request timeout.
	DefaultTimeout = 10 * time.Second
)

// ClientConfig holds configuration for the Google Maps client.
type ClientConfig struct {
	// APIKey is the Maps Platform key (required).
	APIKey string

	// BaseURL overrides the Google API host (optional, for tests).
	BaseURL string

	// Region biases geocoding toward a ccTLD region (default: "sa").
	Region string

	// Transport overrides the resilient transport (optional).
	Transport http.RoundTripper

	// Timeout is the per-attempt timeout for the default transport (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps directions and geocoding client.
type Client struct {
	maps   *maps.Client
	region string
	logger zerolog.Logger
}

// NewClient creates a new Google Maps client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("googlemaps: API key is required")
	}

	transport := cfg.Transport
	if transport == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = timeout
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		transport = resilience.NewClient(rc)
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Transport: transport}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "sa"
	}

	return &Client{maps: mc, region: region, logger: cfg.Logger}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections retrieves driving routes between two places.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if req.Origin == "" || req.Destination == "" {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_REQUEST",
			Message:  "origin and destination are required",
			Err:      routing.ErrInvalidRequest,
		}
	}

	dr := &maps.DirectionsRequest{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Mode:         maps.TravelModeDriving,
		Alternatives: req.Alternatives,
		Region:       req.Region,
	}
	if req.Avoid != routing.AvoidNone {
		dr.Avoid = []maps.Avoid{maps.Avoid(req.Avoid)}
	}
	if req.DepartNow {
		dr.DepartureTime = "now"
		dr.TrafficModel = maps.TrafficModel(req.TrafficModel)
	}

	c.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Str("avoid", string(req.Avoid)).
		Str("traffic_model", string(dr.TrafficModel)).
		Msg("requesting directions from Google Maps")

	routes, _, err := c.maps.Directions(ctx, dr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mapError(err)
	}
	if len(routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the requested places",
			Err:      routing.ErrNoRouteFound,
		}
	}

	out := make([]routing.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, convertRoute(r))
	}

	return &routing.DirectionsResponse{
		Routes:    out,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// Geocode resolves a free-form place to its first match.
func (c *Client) Geocode(ctx context.Context, address string) (routing.Coordinate, error) {
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  c.region,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return routing.Coordinate{}, ctxErr
		}
		return routing.Coordinate{}, mapError(err)
	}
	if len(results) == 0 {
		return routing.Coordinate{}, &routing.Error{
			Provider: ProviderName,
			Code:     "PLACE_NOT_FOUND",
			Message:  fmt.Sprintf("no match for %q", address),
			Err:      routing.ErrPlaceNotFound,
		}
	}

	loc := results[0].Geometry.Location
	return routing.Coordinate{Lat: loc.Lat, Lon: loc.Lng}, nil
}

func convertRoute(r maps.Route) routing.Route {
	route := routing.Route{
		Summary:  r.Summary,
		Polyline: r.OverviewPolyline.Points,
		BoundingBox: &routing.BoundingBox{
			MinLat: r.Bounds.SouthWest.Lat,
			MinLon: r.Bounds.SouthWest.Lng,
			MaxLat: r.Bounds.NorthEast.Lat,
			MaxLon: r.Bounds.NorthEast.Lng,
		},
	}

	var meters int
	var duration time.Duration
	for _, leg := range r.Legs {
		if leg == nil {
			continue
		}
		meters += leg.Distance.Meters
		duration += leg.Duration
	}

	route.DistanceMeters = meters
	route.DurationSeconds = int(duration / time.Second)
	route.DurationText = routing.FormatDuration(duration)
	if len(r.Legs) == 1 && r.Legs[0] != nil && r.Legs[0].Distance.HumanReadable != "" {
		route.DistanceText = r.Legs[0].Distance.HumanReadable
	} else {
		route.DistanceText = routing.FormatDistance(meters)
	}

	return route
}

// mapError converts a maps client error into a routing error.
// The maps client reports API statuses as "maps: STATUS - message".
func mapError(err error) error {
	msg := err.Error()

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "CIRCUIT_OPEN",
			Message:  "routing provider circuit breaker is open",
			Err:      routing.ErrProviderUnavailable,
		}
	case strings.Contains(msg, "ZERO_RESULTS"), strings.Contains(msg, "NOT_FOUND"):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the requested places",
			Err:      routing.ErrNoRouteFound,
		}
	case strings.Contains(msg, "OVER_QUERY_LIMIT"), strings.Contains(msg, "OVER_DAILY_LIMIT"):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMITED",
			Message:  "routing provider rate limit exceeded",
			Err:      routing.ErrRateLimitExceeded,
		}
	case strings.Contains(msg, "INVALID_REQUEST"):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_REQUEST",
			Message:  "routing provider rejected the request",
			Err:      routing.ErrInvalidRequest,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}
}
