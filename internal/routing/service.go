package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tripmap/tripmap/internal/telemetry"
)

const (
	operationFindRoutes = "find_routes"
	tracerName          = "github.com/tripmap/tripmap/internal/routing"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the directions provider.
	Provider Provider

	// Geocoder classifies trips by straight-line distance (optional).
	// Without it every trip is treated as last-mile.
	Geocoder Geocoder

	// Store is a shared second-level cache (optional).
	Store Store

	// Metrics records provider calls and cache hits (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger

	// Strategies are tried in order (default: DefaultStrategies).
	Strategies []Strategy

	// Region biases results toward a ccTLD region (default: "sa").
	Region string

	// MaxResults caps the number of distinct routes returned (default: 3).
	MaxResults int

	// IntercityThresholdKm is the straight-line distance above which a trip is intercity (default: 50).
	IntercityThresholdKm float64

	// CacheTTL is how long to cache route sets (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service finds routes with caching.
type Service struct {
	provider        Provider
	geocoder        Geocoder
	store           Store
	metrics         *telemetry.ProviderMetrics
	logger          zerolog.Logger
	strategies      []Strategy
	region          string
	maxResults      int
	intercityKm     float64
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedRoutes
	lastCleanup time.Time
}

type cachedRoutes struct {
	set       *RouteSet
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}

	region := cfg.Region
	if region == "" {
		region = "sa"
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	intercityKm := cfg.IntercityThresholdKm
	if intercityKm <= 0 {
		intercityKm = 50
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		geocoder:        cfg.Geocoder,
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		strategies:      strategies,
		region:          region,
		maxResults:      maxResults,
		intercityKm:     intercityKm,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedRoutes),
	}
}

// FindRoutes returns up to MaxResults distinct driving routes between two places.
// Uses cached data if available and not expired.
func (s *Service) FindRoutes(ctx context.Context, origin, destination string) (*RouteSet, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_REQUEST",
			Message:  "origin and destination are required",
			Err:      ErrInvalidRequest,
		}
	}

	cacheKey := s.cacheKey(origin, destination)

	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("cache hit for routes")
		s.recordCacheHit(telemetry.CacheTierMemory)
		return cached.set, nil
	}
	s.mu.RUnlock()

	// Concurrent misses for the same trip share one search. The search is
	// detached from any single caller so one cancellation cannot fail the rest.
	searchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(cacheKey, func() (interface{}, error) {
		return s.fetchRoutes(searchCtx, origin, destination, cacheKey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug().
				Str("cache_key", cacheKey).
				Msg("joined in-flight route search")
		}
		return res.Val.(*RouteSet), nil
	}
}

// fetchRoutes consults the shared store, then the provider, and updates the caches.
func (s *Service) fetchRoutes(ctx context.Context, origin, destination, cacheKey string) (*RouteSet, error) {
	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.recordCacheHit(telemetry.CacheTierMemory)
		return cached.set, nil
	}
	s.mu.RUnlock()

	if set := s.loadShared(ctx, cacheKey, s.cacheTTL); set != nil {
		s.recordCacheHit(telemetry.CacheTierShared)
		s.put(cacheKey, set)
		return set, nil
	}
	s.recordCacheMiss()

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "routing.FindRoutes",
		trace.WithAttributes(attribute.String("routing.provider", s.provider.Name())))
	start := time.Now()
	set, err := s.search(ctx, origin, destination)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), operationFindRoutes, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "route search failed")
	} else {
		span.SetAttributes(
			attribute.String("routing.mode", string(set.Mode)),
			attribute.Int("routing.route_count", len(set.Routes)),
		)
		if s.metrics != nil {
			s.metrics.RecordRoutes(s.provider.Name(), string(set.Mode), len(set.Routes))
		}
	}
	span.End()
	if err != nil {
		s.logger.Error().Err(err).
			Str("origin", origin).
			Str("destination", destination).
			Str("provider", s.provider.Name()).
			Msg("failed to find routes")

		if stale := s.stale(ctx, cacheKey); stale != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().
				Time("fetched_at", stale.FetchedAt).
				Str("cache_key", cacheKey).
				Msg("serving stale routes due to provider error")
			if s.metrics != nil {
				s.metrics.RecordStaleServed(s.provider.Name())
			}
			return stale, nil
		}

		return nil, err
	}

	s.put(cacheKey, set)
	s.saveShared(ctx, cacheKey, set)

	return set, nil
}

// stale returns a cached set still inside the stale-if-error window, if any.
func (s *Service) stale(ctx context.Context, cacheKey string) *RouteSet {
	s.mu.RLock()
	cached, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
		return cached.set
	}
	return s.loadShared(ctx, cacheKey, s.staleIfErrorTTL)
}

func (s *Service) put(cacheKey string, set *RouteSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchedAt := set.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	s.cache[cacheKey] = &cachedRoutes{
		set:       set,
		fetchedAt: fetchedAt,
		expiresAt: fetchedAt.Add(s.cacheTTL),
	}

	s.logger.Debug().
		Str("cache_key", cacheKey).
		Int("route_count", len(set.Routes)).
		Msg("cached routes")

	s.cleanupIfNeeded()
}

// loadShared returns the shared entry for cacheKey if it is younger than maxAge.
func (s *Service) loadShared(ctx context.Context, cacheKey string, maxAge time.Duration) *RouteSet {
	if s.store == nil {
		return nil
	}

	set, err := s.store.Load(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).
				Str("cache_key", cacheKey).
				Msg("shared route cache read failed")
		}
		return nil
	}
	if time.Since(set.FetchedAt) > maxAge {
		return nil
	}
	return set
}

func (s *Service) saveShared(ctx context.Context, cacheKey string, set *RouteSet) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, cacheKey, set); err != nil {
		s.logger.Warn().Err(err).
			Str("cache_key", cacheKey).
			Msg("shared route cache write failed")
	}
}

// cacheKey generates a cache key for a trip.
// Places are compared case-insensitively with whitespace collapsed.
// Format: {region}:{origin}|{destination}.
func (s *Service) cacheKey(origin, destination string) string {
	return s.region + ":" + normalizePlace(origin) + "|" + normalizePlace(destination)
}

func normalizePlace(place string) string {
	return strings.Join(strings.Fields(strings.ToLower(place)), " ")
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
// Caller must hold s.mu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		// Remove entries that are past the stale-if-error window
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired route cache entries")
	}
}

func (s *Service) recordCacheHit(tier string) {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(s.provider.Name(), tier)
	}
}

func (s *Service) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(s.provider.Name())
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedRoutes)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
