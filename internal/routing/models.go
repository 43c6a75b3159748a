// Package routing finds candidate driving routes between two free-text places.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/tripmap/tripmap/pkg/polyline"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given places.
	ErrNoRouteFound = errors.New("no route found between the given places")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidRequest indicates a missing origin or destination.
	ErrInvalidRequest = errors.New("invalid routing request")
	// ErrPlaceNotFound indicates a place could not be geocoded.
	ErrPlaceNotFound = errors.New("place not found")
	// ErrCacheMiss is returned by a Store that holds no entry for a key.
	ErrCacheMiss = errors.New("route cache miss")
)

// Provider defines the interface for directions providers.
type Provider interface {
	// GetDirections retrieves driving directions between two places.
	// Returns multiple route alternatives when requested and available.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Geocoder resolves a free-text place to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}

// Store is a second-level route cache shared between instances.
type Store interface {
	// Load returns the cached set for key, or ErrCacheMiss.
	Load(ctx context.Context, key string) (*RouteSet, error)
	// Save stores set under key.
	Save(ctx context.Context, key string, set *RouteSet) error
}

// Coordinate represents a geographic point.
type Coordinate = polyline.Coordinate

// Avoid is a road feature a strategy asks the provider to avoid.
type Avoid string

const (
	AvoidNone     Avoid = ""
	AvoidTolls    Avoid = "tolls"
	AvoidHighways Avoid = "highways"
	AvoidFerries  Avoid = "ferries"
)

// TrafficModel is the assumption used for traffic-aware durations.
type TrafficModel string

const (
	TrafficBestGuess   TrafficModel = "best_guess"
	TrafficPessimistic TrafficModel = "pessimistic"
	TrafficOptimistic  TrafficModel = "optimistic"
)

// TripMode classifies a trip by straight-line distance.
type TripMode string

const (
	// ModeIntercity trips are longer than the intercity threshold; traffic is ignored.
	ModeIntercity TripMode = "intercity"
	// ModeLastMile trips depart now with a traffic model.
	ModeLastMile TripMode = "lastmile"
)

// Strategy is one way of asking the provider for routes. Different strategies
// coax the provider into returning different alternatives.
type Strategy struct {
	Avoid        Avoid
	TrafficModel TrafficModel
}

// DefaultStrategies are tried in order until enough distinct routes are found.
var DefaultStrategies = []Strategy{
	{Avoid: AvoidNone, TrafficModel: TrafficBestGuess},
	{Avoid: AvoidTolls, TrafficModel: TrafficPessimistic},
	{Avoid: AvoidHighways, TrafficModel: TrafficOptimistic},
	{Avoid: AvoidFerries, TrafficModel: TrafficBestGuess},
}

// DirectionsRequest is the request for driving directions.
type DirectionsRequest struct {
	Origin       string
	Destination  string
	Alternatives bool
	Region       string       // ccTLD region bias, e.g. "sa"
	Avoid        Avoid        // Optional feature to avoid
	DepartNow    bool         // Depart now; enables TrafficModel
	TrafficModel TrafficModel // Only used when DepartNow is set
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route represents a single route option from a provider.
type Route struct {
	Summary         string       // Road label, may be empty
	DistanceText    string       // Human-readable distance
	DurationText    string       // Human-readable duration
	DistanceMeters  int          // Total distance in meters
	DurationSeconds int          // Total duration in seconds
	Polyline        string       // Encoded overview polyline (precision 5)
	BoundingBox     *BoundingBox // Geographic bounding box
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// RouteOption is one distinct route in a search result.
type RouteOption struct {
	Summary  string `json:"summary"`
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Polyline string `json:"polyline"`
}

// RouteSet is the result of a route search.
type RouteSet struct {
	Routes     []RouteOption `json:"routes"`
	Mode       TripMode      `json:"mode"`
	DistanceKm float64       `json:"distanceKm"`
	Provider   string        `json:"provider"`
	FetchedAt  time.Time     `json:"fetchedAt"`
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
