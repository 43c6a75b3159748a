// Package openrouteservice provides driving directions and geocoding backed by
// the OpenRouteService API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Country restricts geocoding to an ISO 3166 country code (optional).
	Country string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client. It implements routing.Provider and
// routing.Geocoder.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	httpClient HTTPDoer
	logger     zerolog.Logger

	// places caches geocodes across the strategies of one search.
	places routing.Geocoder
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		country:    cfg.Country,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
	c.places = routing.NewCachedGeocoder(c, 0, 0)
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// avoidFeatures maps routing avoid options to ORS feature names.
var avoidFeatures = map[routing.Avoid]string{
	routing.AvoidTolls:    "tollways",
	routing.AvoidHighways: "highways",
	routing.AvoidFerries:  "ferries",
}

// GetDirections geocodes both places and requests driving routes between them.
// ORS has no live traffic, so DepartNow and TrafficModel are ignored.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if req.Origin == "" || req.Destination == "" {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_REQUEST",
			Message:  "origin and destination are required",
			Err:      routing.ErrInvalidRequest,
		}
	}

	origin, err := c.places.Geocode(ctx, req.Origin)
	if err != nil {
		return nil, err
	}
	destination, err := c.places.Geocode(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	orsReq := orsRequest{
		// ORS uses [lon, lat] order (GeoJSON)
		Coordinates: [][]float64{
			{origin.Lon, origin.Lat},
			{destination.Lon, destination.Lat},
		},
		Instructions: true,
		Units:        "m",
		Language:     "en",
	}
	if req.Alternatives {
		orsReq.AlternativeRoutes = &alternativeRoutesOpts{
			TargetCount:  3,
			WeightFactor: 1.6,
			ShareFactor:  0.6,
		}
	}
	if feature, ok := avoidFeatures[req.Avoid]; ok {
		orsReq.Options = &routeOptions{AvoidFeatures: []string{feature}}
	}

	body, err := json.Marshal(orsReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/driving-car", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Str("avoid", string(req.Avoid)).
		Msg("requesting directions from ORS")

	respBody, err := c.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(orsResp.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the requested places",
			Err:      routing.ErrNoRouteFound,
		}
	}

	result := toDirectionsResponse(&orsResp)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received directions from ORS")

	return result, nil
}

// Geocode resolves a free-form place to the best match from the ORS
// geocoding search, which answers with a GeoJSON feature collection.
func (c *Client) Geocode(ctx context.Context, address string) (routing.Coordinate, error) {
	query := url.Values{}
	query.Set("text", address)
	query.Set("size", "1")
	if c.country != "" {
		query.Set("boundary.country", c.country)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/search?"+query.Encode(), http.NoBody)
	if err != nil {
		return routing.Coordinate{}, fmt.Errorf("creating request: %w", err)
	}

	respBody, err := c.do(ctx, httpReq)
	if err != nil {
		return routing.Coordinate{}, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(respBody)
	if err != nil {
		return routing.Coordinate{}, fmt.Errorf("decoding geocode response: %w", err)
	}
	for _, f := range fc.Features {
		if p, ok := f.Geometry.(orb.Point); ok {
			return routing.Coordinate{Lat: p.Lat(), Lon: p.Lon()}, nil
		}
	}

	return routing.Coordinate{}, &routing.Error{
		Provider: ProviderName,
		Code:     "PLACE_NOT_FOUND",
		Message:  fmt.Sprintf("no match for %q", address),
		Err:      routing.ErrPlaceNotFound,
	}
}

// do sends an authenticated request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// handleErrorResponse maps an ORS failure onto a routing.Error. Directions
// errors carry a numeric code; geocoding errors only a string.
func handleErrorResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr) //nolint:errcheck // zero value is fine

	code, message, sentinel := classify(statusCode, orsErr.Error.Code)
	if message == "" {
		message = orsErr.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("routing provider returned status %d", statusCode)
	}

	return &routing.Error{
		Provider: ProviderName,
		Code:     code,
		Message:  message,
		Err:      sentinel,
	}
}

// classify returns the error code, a fixed message for failures whose ORS
// text is not useful to callers, and the sentinel to wrap.
func classify(statusCode, orsCode int) (code, message string, sentinel error) {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return "RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded
	case statusCode == http.StatusForbidden, statusCode == http.StatusUnauthorized:
		return "FORBIDDEN", "API access denied - check API key configuration", routing.ErrProviderUnavailable
	case orsCode == orsErrorCodeNotFound, orsCode == orsErrorCodePointNotFound, statusCode == http.StatusNotFound:
		return "NO_ROUTE", "", routing.ErrNoRouteFound
	case orsCode == orsErrorCodeDistanceExceeded, statusCode == http.StatusBadRequest:
		return "BAD_REQUEST", "", routing.ErrInvalidRequest
	case statusCode >= http.StatusInternalServerError:
		return fmt.Sprintf("SERVER_%d", statusCode), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable
	default:
		return fmt.Sprintf("HTTP_%d", statusCode), "", routing.ErrProviderUnavailable
	}
}

func toDirectionsResponse(resp *orsResponse) *routing.DirectionsResponse {
	routes := make([]routing.Route, 0, len(resp.Routes))

	for i := range resp.Routes {
		orsRoute := &resp.Routes[i]
		meters := int(orsRoute.Summary.Distance)
		seconds := int(orsRoute.Summary.Duration)

		route := routing.Route{
			Summary:         mainRoad(orsRoute.Segments),
			DistanceMeters:  meters,
			DurationSeconds: seconds,
			DistanceText:    routing.FormatDistance(meters),
			DurationText:    routing.FormatDuration(time.Duration(seconds) * time.Second),
			Polyline:        orsRoute.Geometry,
		}
		if len(orsRoute.BBox) >= 4 {
			route.BoundingBox = &routing.BoundingBox{
				MinLon: orsRoute.BBox[0],
				MinLat: orsRoute.BBox[1],
				MaxLon: orsRoute.BBox[2],
				MaxLat: orsRoute.BBox[3],
			}
		}

		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

// mainRoad labels a route with the named road it spends the most distance on.
// ORS names unnamed steps "-".
func mainRoad(segments []routeSegment) string {
	distance := map[string]float64{}
	var best string
	for _, seg := range segments {
		for _, step := range seg.Steps {
			if step.Name == "" || step.Name == "-" {
				continue
			}
			distance[step.Name] += step.Distance
			if best == "" || distance[step.Name] > distance[best] {
				best = step.Name
			}
		}
	}
	return best
}
