package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockProvider is a mock directions provider for testing.
// Responses are keyed by the strategy's Avoid value; fallback is used otherwise.
type mockProvider struct {
	name      string
	responses map[Avoid]*DirectionsResponse
	errs      map[Avoid]error
	fallback  *DirectionsResponse
	err       error
	delay     time.Duration
	callCount atomic.Int32

	mu       sync.Mutex
	requests []DirectionsRequest
}

func (m *mockProvider) GetDirections(_ context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.errs[req.Avoid]; ok {
		return nil, err
	}
	if resp, ok := m.responses[req.Avoid]; ok {
		return resp, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return &DirectionsResponse{Provider: m.name}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) recorded() []DirectionsRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DirectionsRequest(nil), m.requests...)
}

// mockGeocoder resolves places from a fixed table.
type mockGeocoder struct {
	places    map[string]Coordinate
	callCount atomic.Int32
}

func (m *mockGeocoder) Geocode(_ context.Context, address string) (Coordinate, error) {
	m.callCount.Add(1)
	c, ok := m.places[address]
	if !ok {
		return Coordinate{}, ErrPlaceNotFound
	}
	return c, nil
}

// mockStore is an in-memory shared cache.
type mockStore struct {
	mu    sync.Mutex
	sets  map[string]*RouteSet
	saves int
}

func (m *mockStore) Load(_ context.Context, key string) (*RouteSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return set, nil
}

func (m *mockStore) Save(_ context.Context, key string, set *RouteSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets == nil {
		m.sets = make(map[string]*RouteSet)
	}
	m.sets[key] = set
	m.saves++
	return nil
}

func route(summary, distance, duration, encoded string) Route {
	return Route{Summary: summary, DistanceText: distance, DurationText: duration, Polyline: encoded}
}

func TestService_FindRoutes_DedupesAcrossStrategies(t *testing.T) {
	provider := &mockProvider{
		name: "test-provider",
		responses: map[Avoid]*DirectionsResponse{
			AvoidNone: {Routes: []Route{
				route("Route 40", "950 km", "9 hours 5 mins", "_p~iF~ps|U"),
			}},
			AvoidTolls: {Routes: []Route{
				route("Route 40", "950 km", "9 hours 5 mins", "_p~iF~ps|U"),
				route("", "1,010 km", "10 hours 2 mins", "_ulLnnqC"),
			}},
			AvoidHighways: {Routes: []Route{
				route("Old Road", "1,100 km", "12 hours", "_mqNvxq`@"),
				route("Desert Road", "1,200 km", "13 hours", "_mqNvxq`@"),
			}},
		},
	}

	service := NewService(ServiceConfig{Provider: provider})

	set, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(set.Routes))
	}
	if set.Routes[0].Summary != "Route 40" {
		t.Errorf("expected first route 'Route 40', got %q", set.Routes[0].Summary)
	}
	if set.Routes[1].Summary != "" {
		t.Errorf("expected empty summary to be kept, got %q", set.Routes[1].Summary)
	}
	if set.Routes[2].Summary != "Old Road" {
		t.Errorf("expected third route 'Old Road', got %q", set.Routes[2].Summary)
	}

	// Ferries strategy is never reached once three routes are collected
	if calls := provider.callCount.Load(); calls != 3 {
		t.Errorf("expected 3 provider calls, got %d", calls)
	}
}

func TestService_FindRoutes_TripMode(t *testing.T) {
	geocoder := &mockGeocoder{places: map[string]Coordinate{
		"Jeddah":         {Lat: 21.4858, Lon: 39.1925},
		"Riyadh":         {Lat: 24.7136, Lon: 46.6753},
		"Olaya":          {Lat: 24.6900, Lon: 46.6850},
		"Kingdom Centre": {Lat: 24.7114, Lon: 46.6744},
	}}

	tests := []struct {
		name        string
		origin      string
		destination string
		wantMode    TripMode
	}{
		{name: "intercity", origin: "Jeddah", destination: "Riyadh", wantMode: ModeIntercity},
		{name: "last mile", origin: "Olaya", destination: "Kingdom Centre", wantMode: ModeLastMile},
		{name: "ungeocodable falls back to last mile", origin: "Nowhere", destination: "Riyadh", wantMode: ModeLastMile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				name: "test-provider",
				errs: map[Avoid]error{AvoidNone: ErrNoRouteFound},
				responses: map[Avoid]*DirectionsResponse{
					AvoidTolls: {Routes: []Route{route("A", "1 km", "1 min", "_p~iF~ps|U")}},
				},
			}

			service := NewService(ServiceConfig{Provider: provider, Geocoder: geocoder})

			set, err := service.FindRoutes(context.Background(), tt.origin, tt.destination)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if set.Mode != tt.wantMode {
				t.Errorf("expected mode %s, got %s", tt.wantMode, set.Mode)
			}

			for _, req := range provider.recorded() {
				if !req.Alternatives {
					t.Error("expected alternatives to be requested")
				}
				if req.Region != "sa" {
					t.Errorf("expected default region 'sa', got %q", req.Region)
				}
				if tt.wantMode == ModeIntercity && (req.DepartNow || req.TrafficModel != "") {
					t.Errorf("intercity request should not depart now: %+v", req)
				}
				if tt.wantMode == ModeLastMile && !req.DepartNow {
					t.Errorf("last-mile request should depart now: %+v", req)
				}
			}

			reqs := provider.recorded()
			if tt.wantMode == ModeLastMile && len(reqs) == 4 {
				if reqs[1].TrafficModel != TrafficPessimistic || reqs[2].TrafficModel != TrafficOptimistic {
					t.Errorf("unexpected traffic models: %+v", reqs)
				}
			}
		})
	}
}

func TestService_FindRoutes_NoRoutes(t *testing.T) {
	provider := &mockProvider{name: "test-provider"}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.FindRoutes(context.Background(), "Jeddah", "Atlantis")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var routingErr *Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
	if routingErr.Message != "No routes found" {
		t.Errorf("expected message 'No routes found', got %q", routingErr.Message)
	}
	if calls := provider.callCount.Load(); calls != int32(len(DefaultStrategies)) {
		t.Errorf("expected every strategy to be tried, got %d calls", calls)
	}
}

func TestService_FindRoutes_ProviderUnavailable(t *testing.T) {
	provider := &mockProvider{
		name: "test-provider",
		err:  &Error{Code: "REQUEST_FAILED", Message: "failed to reach routing provider", Err: ErrProviderUnavailable},
	}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestService_FindRoutes_SkipsFailedStrategy(t *testing.T) {
	provider := &mockProvider{
		name: "test-provider",
		errs: map[Avoid]error{AvoidNone: ErrProviderUnavailable},
		responses: map[Avoid]*DirectionsResponse{
			AvoidTolls: {Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
		},
	}
	service := NewService(ServiceConfig{Provider: provider})

	set, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(set.Routes))
	}
}

func TestService_FindRoutes_InvalidRequest(t *testing.T) {
	provider := &mockProvider{name: "test-provider"}
	service := NewService(ServiceConfig{Provider: provider})

	tests := []struct {
		name        string
		origin      string
		destination string
	}{
		{name: "empty origin", origin: "", destination: "Riyadh"},
		{name: "blank destination", origin: "Jeddah", destination: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.FindRoutes(context.Background(), tt.origin, tt.destination)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	if provider.callCount.Load() != 0 {
		t.Errorf("expected no provider calls for invalid requests, got %d", provider.callCount.Load())
	}
}

func TestService_FindRoutes_CacheHit(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}
	service := NewService(ServiceConfig{Provider: provider, MaxResults: 1})

	if _, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh"); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	// Same trip, different spelling
	if _, err := service.FindRoutes(context.Background(), "  jeddah ", "RIYADH"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_FindRoutes_StaleIfError(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}

	service := NewService(ServiceConfig{
		Provider:        provider,
		MaxResults:      1,
		CacheTTL:        50 * time.Millisecond,
		StaleIfErrorTTL: 500 * time.Millisecond,
	})

	if _, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for cache to expire (but still within stale window)
	time.Sleep(100 * time.Millisecond)

	provider.err = ErrProviderUnavailable

	set, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	if err != nil {
		t.Fatalf("expected stale data to be served, got error: %v", err)
	}
	if set.Routes[0].Distance != "950 km" {
		t.Errorf("expected stale distance '950 km', got %q", set.Routes[0].Distance)
	}
}

func TestService_FindRoutes_ConcurrentRequests(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		delay:    50 * time.Millisecond,
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}
	service := NewService(ServiceConfig{Provider: provider, MaxResults: 1})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Concurrent misses share one search
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}
}

func TestService_FindRoutes_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		delay:    300 * time.Millisecond,
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}
	service := NewService(ServiceConfig{Provider: provider, MaxResults: 1})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := service.FindRoutes(firstCtx, "Jeddah", "Riyadh")
		firstErr <- err
	}()

	type result struct {
		set *RouteSet
		err error
	}
	second := make(chan result, 1)
	time.Sleep(50 * time.Millisecond)
	go func() {
		set, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
		second <- result{set, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancelled caller to get context.Canceled, got %v", err)
	}

	res := <-second
	if res.err != nil {
		t.Fatalf("expected joined caller to succeed, got %v", res.err)
	}
	if len(res.set.Routes) != 1 || res.set.Routes[0].Summary != "Route 40" {
		t.Errorf("unexpected routes: %+v", res.set.Routes)
	}
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}

	// The detached search still fills the cache
	if _, err := service.FindRoutes(context.Background(), "Jeddah", "Riyadh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected cached result, got %d provider calls", calls)
	}
}

func TestService_FindRoutes_SharedStore(t *testing.T) {
	store := &mockStore{}
	provider := &mockProvider{
		name:     "test-provider",
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}

	first := NewService(ServiceConfig{Provider: provider, Store: store, MaxResults: 1})
	if _, err := first.FindRoutes(context.Background(), "Jeddah", "Riyadh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected 1 save to shared store, got %d", store.saves)
	}

	// A second instance with a cold memory cache is served from the store
	second := NewService(ServiceConfig{Provider: provider, Store: store, MaxResults: 1})
	set, err := second.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(set.Routes))
	}
	if provider.callCount.Load() != 1 {
		t.Errorf("expected provider to be called once across instances, got %d", provider.callCount.Load())
	}
}

func TestService_CacheStats(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		fallback: &DirectionsResponse{Routes: []Route{route("Route 40", "950 km", "9 hours", "_p~iF~ps|U")}},
	}
	service := NewService(ServiceConfig{Provider: provider, MaxResults: 1})

	stats := service.CacheStats()
	if stats.TotalEntries != 0 {
		t.Errorf("expected 0 entries, got %d", stats.TotalEntries)
	}

	_, _ = service.FindRoutes(context.Background(), "Jeddah", "Riyadh")
	_, _ = service.FindRoutes(context.Background(), "Dammam", "Riyadh")

	stats = service.CacheStats()
	if stats.TotalEntries != 2 || stats.FreshEntries != 2 {
		t.Errorf("expected 2 fresh entries, got %+v", stats)
	}
	if stats.Provider != "test-provider" {
		t.Errorf("expected provider 'test-provider', got %q", stats.Provider)
	}

	service.InvalidateCache()
	if service.CacheStats().TotalEntries != 0 {
		t.Error("expected empty cache after invalidation")
	}
}

func TestService_CacheKeyFormat(t *testing.T) {
	service := NewService(ServiceConfig{Provider: &mockProvider{name: "test-provider"}})

	key := service.cacheKey("  King Fahd   Road ", "RIYADH")
	if key != "sa:king fahd road|riyadh" {
		t.Errorf("unexpected cache key %q", key)
	}
}

func TestCachedGeocoder(t *testing.T) {
	next := &mockGeocoder{places: map[string]Coordinate{
		"Riyadh": {Lat: 24.7136, Lon: 46.6753},
	}}
	geocoder := NewCachedGeocoder(next, 10, time.Minute)

	for i := 0; i < 3; i++ {
		c, err := geocoder.Geocode(context.Background(), "Riyadh")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Lat != 24.7136 {
			t.Errorf("unexpected coordinate %+v", c)
		}
	}
	if next.callCount.Load() != 1 {
		t.Errorf("expected 1 upstream geocode, got %d", next.callCount.Load())
	}

	// Failures are not cached
	_, _ = geocoder.Geocode(context.Background(), "Atlantis")
	_, err := geocoder.Geocode(context.Background(), "Atlantis")
	if !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("expected ErrPlaceNotFound, got %v", err)
	}
	if next.callCount.Load() != 3 {
		t.Errorf("expected failed lookups to reach upstream, got %d calls", next.callCount.Load())
	}
	if geocoder.Len() != 1 {
		t.Errorf("expected 1 cached place, got %d", geocoder.Len())
	}
}
