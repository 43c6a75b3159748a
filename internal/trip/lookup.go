package trip

import (
	"context"
	"fmt"

	"github.com/tripmap/tripmap/internal/routing"
	"github.com/tripmap/tripmap/pkg/polyline"
)

// ProviderLookup answers live alternative lookups from a directions provider.
// Each call is an independent driving query with alternatives; the route at the
// requested rank is decoded and returned.
type ProviderLookup struct {
	provider routing.Provider
	decoder  PathDecoder
	region   string
}

// NewProviderLookup creates a lookup over provider. decoder may be nil.
func NewProviderLookup(provider routing.Provider, decoder PathDecoder, region string) *ProviderLookup {
	if decoder == nil {
		decoder = polyline.Codec{}
	}
	return &ProviderLookup{
		provider: provider,
		decoder:  decoder,
		region:   region,
	}
}

// LookupAlternative fetches the alternative at index for q.
func (l *ProviderLookup) LookupAlternative(ctx context.Context, q TripQuery, index int) (*Alternative, error) {
	resp, err := l.provider.GetDirections(ctx, routing.DirectionsRequest{
		Origin:       q.Origin,
		Destination:  q.Destination,
		Alternatives: true,
		Region:       l.region,
	})
	if err != nil {
		return nil, fmt.Errorf("live directions for alternative %d: %w", index, err)
	}
	if index < 0 || index >= len(resp.Routes) {
		return nil, fmt.Errorf("%w: rank %d of %d", ErrAlternativeUnavailable, index, len(resp.Routes))
	}

	route := resp.Routes[index]
	path, err := l.decoder.Decode(route.Polyline)
	if err != nil {
		return nil, fmt.Errorf("decoding live alternative %d: %w", index, err)
	}

	return &Alternative{
		Path:     path,
		Summary:  route.Summary,
		Distance: route.DistanceText,
		Duration: route.DurationText,
	}, nil
}
