package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/api/middleware"
	"github.com/tripmap/tripmap/internal/api/models"
	"github.com/tripmap/tripmap/internal/api/response"
	"github.com/tripmap/tripmap/internal/routing"
)

// RouteFinder finds distinct driving routes between two places.
type RouteFinder interface {
	FindRoutes(ctx context.Context, origin, destination string) (*routing.RouteSet, error)
}

// RouteHandler handles the route search endpoint.
type RouteHandler struct {
	finder RouteFinder
	logger zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(finder RouteFinder, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{finder: finder, logger: logger}
}

// GetRoutes handles GET /routes?origin=&destination=.
func (h *RouteHandler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	origin := strings.TrimSpace(query.Get("origin"))
	destination := strings.TrimSpace(query.Get("destination"))

	if origin == "" || destination == "" {
		response.BadRequest(w, r, models.MessageMissingPlaces)
		return
	}

	set, err := h.finder.FindRoutes(r.Context(), origin, destination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := models.RoutesResponse{
		Routes:     make([]models.RouteOption, 0, len(set.Routes)),
		Mode:       string(set.Mode),
		DistanceKm: set.DistanceKm,
	}
	for _, route := range set.Routes {
		resp.Routes = append(resp.Routes, models.RouteOption{
			Summary:  route.Summary,
			Distance: route.Distance,
			Duration: route.Duration,
			Polyline: route.Polyline,
		})
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *RouteHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, routing.ErrInvalidRequest):
		response.BadRequest(w, r, models.MessageMissingPlaces)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.NotFound(w, r, models.MessageNoRoutes)
	case errors.Is(err, routing.ErrRateLimitExceeded):
		response.TooManyRequests(w, r, models.MessageRateLimited, 60)
	case errors.Is(err, routing.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, models.MessageUnavailable)
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the response.
		h.logger.Debug().Str("request_id", middleware.GetRequestID(r.Context())).Msg("route search cancelled by client")
	default:
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("route search failed")
		response.InternalError(w, r, models.MessageInternal)
	}
}
