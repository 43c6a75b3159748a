package routing

import (
	"context"
	"errors"
	"time"

	"github.com/tripmap/tripmap/pkg/polyline"
)

// search runs the strategies in order and collects distinct routes.
func (s *Service) search(ctx context.Context, origin, destination string) (*RouteSet, error) {
	distanceKm := s.straightLineKm(ctx, origin, destination)

	mode := ModeLastMile
	if distanceKm > s.intercityKm {
		mode = ModeIntercity
	}

	options := make([]RouteOption, 0, s.maxResults)
	attempts := 0
	unavailable := 0

	for _, strategy := range s.strategies {
		if len(options) >= s.maxResults {
			break
		}

		req := DirectionsRequest{
			Origin:       origin,
			Destination:  destination,
			Alternatives: true,
			Region:       s.region,
			Avoid:        strategy.Avoid,
		}
		if mode == ModeLastMile {
			req.DepartNow = true
			req.TrafficModel = strategy.TrafficModel
		}

		start := time.Now()
		resp, err := s.provider.GetDirections(ctx, req)
		attempts++
		if s.metrics != nil {
			s.metrics.RecordRequest(s.provider.Name(), "directions", time.Since(start), err)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrRateLimitExceeded) {
				unavailable++
			}
			s.logger.Warn().Err(err).
				Str("avoid", string(strategy.Avoid)).
				Str("traffic_model", string(strategy.TrafficModel)).
				Msg("directions strategy failed, trying next")
			continue
		}

		s.logger.Debug().
			Str("avoid", string(strategy.Avoid)).
			Str("traffic_model", string(strategy.TrafficModel)).
			Int("route_count", len(resp.Routes)).
			Msg("provider returned routes")

		for _, route := range resp.Routes {
			if len(options) >= s.maxResults {
				break
			}
			if containsRoute(options, route) {
				continue
			}

			options = append(options, RouteOption{
				Summary:  route.Summary,
				Distance: route.DistanceText,
				Duration: route.DurationText,
				Polyline: route.Polyline,
			})
		}
	}

	if len(options) == 0 {
		if attempts > 0 && unavailable == attempts {
			return nil, &Error{
				Provider: s.provider.Name(),
				Code:     "PROVIDER_UNAVAILABLE",
				Message:  "routing provider is temporarily unavailable",
				Err:      ErrProviderUnavailable,
			}
		}
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "NO_ROUTE",
			Message:  "No routes found",
			Err:      ErrNoRouteFound,
		}
	}

	s.logger.Info().
		Str("mode", string(mode)).
		Float64("distance_km", distanceKm).
		Int("route_count", len(options)).
		Msg("returning unique routes")

	return &RouteSet{
		Routes:     options,
		Mode:       mode,
		DistanceKm: distanceKm,
		Provider:   s.provider.Name(),
		FetchedAt:  time.Now(),
	}, nil
}

// containsRoute reports whether a route with the same distance and duration text was already collected.
func containsRoute(options []RouteOption, route Route) bool {
	for _, o := range options {
		if o.Distance == route.DistanceText && o.Duration == route.DurationText {
			return true
		}
	}
	return false
}

// straightLineKm returns the great-circle distance between the geocoded places,
// or 0 when either cannot be geocoded.
func (s *Service) straightLineKm(ctx context.Context, origin, destination string) float64 {
	if s.geocoder == nil {
		return 0
	}

	from, err := s.geocoder.Geocode(ctx, origin)
	if err != nil {
		s.logger.Debug().Err(err).Str("place", origin).Msg("geocoding origin failed")
		return 0
	}
	to, err := s.geocoder.Geocode(ctx, destination)
	if err != nil {
		s.logger.Debug().Err(err).Str("place", destination).Msg("geocoding destination failed")
		return 0
	}

	return polyline.Distance(from, to) / 1000
}
