package trip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmap/tripmap/internal/routing"
)

type fakeProvider struct {
	mu   sync.Mutex
	resp *routing.DirectionsResponse
	err  error
	reqs []routing.DirectionsRequest
}

func (p *fakeProvider) GetDirections(_ context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return p.resp, p.err
}

func (p *fakeProvider) Name() string { return "fake" }

func TestProviderLookup_LookupAlternative(t *testing.T) {
	provider := &fakeProvider{resp: &routing.DirectionsResponse{Routes: []routing.Route{
		{Summary: "Route 40", DistanceText: "950 km", DurationText: "9 hours", Polyline: "_p~iF~ps|U"},
		{Summary: "Route 65", DistanceText: "1,010 km", DurationText: "10 hours", Polyline: "_p~iF~ps|U_ulLnnqC"},
		{Summary: "Broken", Polyline: "_p~i"},
	}}}
	lookup := NewProviderLookup(provider, nil, "sa")

	alt, err := lookup.LookupAlternative(context.Background(), jeddahRiyadh, 1)
	require.NoError(t, err)
	assert.Equal(t, "Route 65", alt.Summary)
	assert.Equal(t, "1,010 km", alt.Distance)
	assert.Len(t, alt.Path, 2)

	require.Len(t, provider.reqs, 1)
	assert.Equal(t, "Jeddah", provider.reqs[0].Origin)
	assert.Equal(t, "Riyadh", provider.reqs[0].Destination)
	assert.True(t, provider.reqs[0].Alternatives)
	assert.Equal(t, "sa", provider.reqs[0].Region)

	_, err = lookup.LookupAlternative(context.Background(), jeddahRiyadh, 5)
	assert.ErrorIs(t, err, ErrAlternativeUnavailable)

	_, err = lookup.LookupAlternative(context.Background(), jeddahRiyadh, 2)
	assert.Error(t, err)
}

func TestProviderLookup_ProviderError(t *testing.T) {
	lookup := NewProviderLookup(&fakeProvider{err: routing.ErrProviderUnavailable}, nil, "sa")

	_, err := lookup.LookupAlternative(context.Background(), jeddahRiyadh, 0)
	assert.True(t, errors.Is(err, routing.ErrProviderUnavailable))
}

func TestResolver_LiveWithProviderLookup(t *testing.T) {
	provider := &fakeProvider{resp: &routing.DirectionsResponse{Routes: []routing.Route{
		{Summary: "Route 40", Polyline: "_p~iF~ps|U"},
	}}}
	resolver, err := NewResolver(ResolverConfig{
		Strategy: StrategyLive,
		Lookup:   NewProviderLookup(provider, nil, "sa"),
	})
	require.NoError(t, err)

	// The backend offered two alternatives, the live source only has one.
	routes := resolver.Resolve(context.Background(), jeddahRiyadh, []RouteSummary{
		{Polyline: "_p~iF~ps|U"},
		{Polyline: "_p~iF~ps|U"},
	})
	require.Len(t, routes, 1)
	assert.Equal(t, 0, routes[0].Index)
	assert.Equal(t, "Route 40", routes[0].Summary)
}
