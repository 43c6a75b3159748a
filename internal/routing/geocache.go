package routing

import (
	"context"
	"time"

	"github.com/bluele/gcache"
)

// CachedGeocoder memoizes geocoding results in an LRU with expiration.
// Failures are not cached.
type CachedGeocoder struct {
	next  Geocoder
	cache gcache.Cache
}

// NewCachedGeocoder wraps next with an LRU of the given size and TTL.
func NewCachedGeocoder(next Geocoder, size int, ttl time.Duration) *CachedGeocoder {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedGeocoder{
		next:  next,
		cache: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

// Geocode returns the cached coordinate for address or asks the wrapped geocoder.
func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (Coordinate, error) {
	key := normalizePlace(address)
	if cached, err := g.cache.Get(key); err == nil {
		if c, ok := cached.(Coordinate); ok {
			return c, nil
		}
	}

	c, err := g.next.Geocode(ctx, address)
	if err != nil {
		return Coordinate{}, err
	}
	_ = g.cache.Set(key, c)
	return c, nil
}

// Len returns the number of unexpired cached places.
func (g *CachedGeocoder) Len() int {
	return g.cache.Len(true)
}
