// Package routesclient queries the routing backend's GET /routes endpoint.
package routesclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/provider/resilience"
	"github.com/tripmap/tripmap/internal/trip"
)

const (
	// ClientName identifies the backend in the resilience registry.
	ClientName = "routes-backend"

	// DefaultBaseURL is the local routing backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second

	// GenericMessage is reported when the backend gives no error of its own.
	GenericMessage = "unable to fetch routes"

	maxBodyBytes = 4 << 20
)

// Sentinel errors matched by errors.Is against an *Error.
var (
	ErrNetworkFailure = errors.New("routing backend unreachable")
	ErrBackendError   = errors.New("routing backend reported an error")
)

// Kind classifies a fetch failure.
type Kind int

const (
	// KindNetwork covers transport failures and non-2xx responses without an error body.
	KindNetwork Kind = iota
	// KindBackend means the response carried an explicit error field.
	KindBackend
)

func (k Kind) String() string {
	if k == KindBackend {
		return "backend"
	}
	return "network"
}

// Error is returned by FetchRoutes. Its message is user-visible.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, zero when no response was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	sentinel := ErrNetworkFailure
	if e.Kind == KindBackend {
		sentinel = ErrBackendError
	}
	if e.Err == nil {
		return sentinel
	}
	return errors.Join(sentinel, e.Err)
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the routes client.
type Config struct {
	// BaseURL of the routing backend (default: DefaultBaseURL).
	BaseURL string

	// HTTPClient overrides the default single-attempt resilient client.
	HTTPClient HTTPDoer

	// Timeout for the default client (default: DefaultTimeout).
	Timeout time.Duration

	// Registry records backend health for the default client (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches route summaries from the routing backend.
type Client struct {
	endpoint   string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// New creates a routes client. The default HTTP client never retries.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid routing backend URL %q", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/routes"
	u.RawQuery = ""

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		rc := resilience.DefaultClientConfig(ClientName)
		rc.Timeout = timeout
		rc.MaxRetries = 0
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		endpoint:   u.String(),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

type routesResponse struct {
	Routes []trip.RouteSummary `json:"routes"`
	Error  *string             `json:"error"`
}

// FetchRoutes issues one GET /routes for the pair. A missing routes field is an
// empty result, not a failure.
func (c *Client) FetchRoutes(ctx context.Context, origin, destination string) ([]trip.RouteSummary, error) {
	query := url.Values{}
	query.Set("origin", origin)
	query.Set("destination", destination)
	target := c.endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Msg("fetching routes from backend")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Kind: KindNetwork, Message: GenericMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: GenericMessage, Err: err}
	}

	var parsed routesResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if decodeErr == nil && parsed.Error != nil && *parsed.Error != "" {
		message := *parsed.Error
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("backend_error", message).
			Msg("routing backend returned an error")
		return nil, &Error{Kind: KindBackend, Status: resp.StatusCode, Message: message}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("routing backend returned non-success status")
		return nil, &Error{
			Kind:    KindNetwork,
			Status:  resp.StatusCode,
			Message: GenericMessage,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if decodeErr != nil {
		return nil, &Error{
			Kind:    KindNetwork,
			Status:  resp.StatusCode,
			Message: GenericMessage,
			Err:     fmt.Errorf("decoding response: %w", decodeErr),
		}
	}

	if parsed.Routes == nil {
		return []trip.RouteSummary{}, nil
	}
	return parsed.Routes, nil
}
