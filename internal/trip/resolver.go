package trip

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tripmap/tripmap/pkg/polyline"
)

// Strategy selects where the resolver gets renderable geometry from.
// A resolver uses exactly one strategy for every alternative it resolves.
type Strategy int

const (
	// StrategyEmbedded decodes the polyline carried by each summary.
	StrategyEmbedded Strategy = iota
	// StrategyLive asks a secondary directions source for the alternative at each rank.
	StrategyLive
)

func (s Strategy) String() string {
	if s == StrategyLive {
		return "live"
	}
	return "embedded"
}

// PathDecoder turns an encoded polyline into coordinates.
type PathDecoder interface {
	Decode(encoded string) ([]polyline.Coordinate, error)
}

// Alternative is the geometry and metadata returned by a secondary lookup.
type Alternative struct {
	Path     []polyline.Coordinate
	Summary  string
	Distance string
	Duration string
}

// Lookup is a secondary live directions source, queried once per alternative rank.
type Lookup interface {
	LookupAlternative(ctx context.Context, q TripQuery, index int) (*Alternative, error)
}

// ResolverConfig holds configuration for the alternative resolver.
type ResolverConfig struct {
	// Strategy picks embedded decoding (default) or live lookups.
	Strategy Strategy

	// Decoder decodes embedded polylines (default: polyline.Codec).
	Decoder PathDecoder

	// Lookup is required for StrategyLive.
	Lookup Lookup

	// Palette assigns colors by index (default: DefaultPalette).
	Palette Palette

	// Concurrency bounds in-flight live lookups (default: 3).
	Concurrency int

	// Logger for resolver operations.
	Logger zerolog.Logger
}

// Resolver turns route summaries into colored routes.
type Resolver struct {
	strategy    Strategy
	decoder     PathDecoder
	lookup      Lookup
	palette     Palette
	concurrency int
	logger      zerolog.Logger
}

// NewResolver creates a resolver. It fails when the live strategy has no lookup.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Strategy == StrategyLive && cfg.Lookup == nil {
		return nil, ErrLookupRequired
	}

	decoder := cfg.Decoder
	if decoder == nil {
		decoder = polyline.Codec{}
	}

	palette := cfg.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	return &Resolver{
		strategy:    cfg.Strategy,
		decoder:     decoder,
		lookup:      cfg.Lookup,
		palette:     palette,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}, nil
}

// Strategy returns the geometry strategy this resolver is bound to.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Resolve returns one colored route per summary that yields a usable path, in input order.
// Alternatives that fail are logged and omitted; the result is never nil, so an empty
// slice means every alternative failed (or there were none), not that the query failed.
func (r *Resolver) Resolve(ctx context.Context, q TripQuery, summaries []RouteSummary) []ColoredRoute {
	if r.strategy == StrategyLive {
		return r.resolveLive(ctx, q, summaries)
	}
	return r.resolveEmbedded(summaries)
}

func (r *Resolver) resolveEmbedded(summaries []RouteSummary) []ColoredRoute {
	routes := make([]ColoredRoute, 0, len(summaries))

	for i, s := range summaries {
		path, err := r.decoder.Decode(s.Polyline)
		if err != nil {
			r.logger.Warn().Err(err).
				Int("alternative_index", i).
				Str("summary", s.Summary).
				Msg("dropping alternative with undecodable polyline")
			continue
		}
		if len(path) == 0 {
			r.logger.Warn().
				Int("alternative_index", i).
				Str("summary", s.Summary).
				Msg("dropping alternative without geometry")
			continue
		}

		routes = append(routes, ColoredRoute{
			Index:    i,
			Color:    r.palette.ColorFor(i),
			Path:     path,
			Summary:  s.Summary,
			Distance: s.Distance,
			Duration: s.Duration,
		})
	}

	return routes
}

// resolveLive issues one lookup per rank and joins them by index before returning,
// so callers only ever see the complete set.
func (r *Resolver) resolveLive(ctx context.Context, q TripQuery, summaries []RouteSummary) []ColoredRoute {
	settled := make([]*ColoredRoute, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range summaries {
		g.Go(func() error {
			alt, err := r.lookup.LookupAlternative(gctx, q, i)
			if err != nil {
				r.logger.Warn().Err(err).
					Int("alternative_index", i).
					Msg("live lookup failed for alternative")
				return nil
			}
			if alt == nil || len(alt.Path) == 0 {
				r.logger.Warn().
					Int("alternative_index", i).
					Msg("live lookup returned no geometry")
				return nil
			}

			route := ColoredRoute{
				Index:    i,
				Color:    r.palette.ColorFor(i),
				Path:     alt.Path,
				Summary:  firstNonEmpty(alt.Summary, summaries[i].Summary),
				Distance: firstNonEmpty(alt.Distance, summaries[i].Distance),
				Duration: firstNonEmpty(alt.Duration, summaries[i].Duration),
			}
			settled[i] = &route
			return nil
		})
	}

	// Lookups never return errors; failures stay isolated in settled.
	_ = g.Wait()

	routes := make([]ColoredRoute, 0, len(summaries))
	for _, route := range settled {
		if route != nil {
			routes = append(routes, *route)
		}
	}
	return routes
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
