package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tripmap/tripmap/internal/telemetry"

// Cache tiers a route search can be answered from.
const (
	CacheTierMemory = "memory"
	CacheTierShared = "shared"
)

// ProviderMetrics records route searches and the directions calls behind them.
type ProviderMetrics struct {
	callDuration  metric.Float64Histogram
	calls         metric.Int64Counter
	routesPerTrip metric.Int64Histogram
	cacheLookups  metric.Int64Counter
	staleServed   metric.Int64Counter
}

// NewProviderMetrics creates the routing instruments on the global meter provider.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)
	m := &ProviderMetrics{}

	var err error
	if m.callDuration, err = meter.Float64Histogram(
		"routing.provider.duration",
		metric.WithDescription("Duration of directions provider calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.calls, err = meter.Int64Counter(
		"routing.provider.calls",
		metric.WithDescription("Directions provider calls by operation and outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.routesPerTrip, err = meter.Int64Histogram(
		"routing.search.routes",
		metric.WithDescription("Routes returned per completed search"),
		metric.WithUnit("{route}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter(
		"routing.cache.lookups",
		metric.WithDescription("Route cache lookups by tier and result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.staleServed, err = meter.Int64Counter(
		"routing.cache.stale_served",
		metric.WithDescription("Searches answered from stale routes after a provider failure"),
		metric.WithUnit("{search}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records one provider call. Samples are detached from the
// request context so a cancelled search still counts.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.Bool("error", err != nil),
	)
	ctx := context.Background()
	m.callDuration.Record(ctx, duration.Seconds(), opt)
	m.calls.Add(ctx, 1, opt)
}

// RecordRoutes records how many routes a search produced and in which mode.
func (m *ProviderMetrics) RecordRoutes(provider, mode string, n int) {
	m.routesPerTrip.Record(context.Background(), int64(n), metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("routing.mode", mode),
	))
}

// RecordCacheHit records a search answered from tier.
func (m *ProviderMetrics) RecordCacheHit(provider, tier string) {
	m.recordLookup(provider, tier, true)
}

// RecordCacheMiss records a search that had to reach the provider.
func (m *ProviderMetrics) RecordCacheMiss(provider string) {
	m.recordLookup(provider, "", false)
}

// RecordStaleServed records a provider failure masked by stale routes.
func (m *ProviderMetrics) RecordStaleServed(provider string) {
	m.staleServed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider.name", provider)))
}

func (m *ProviderMetrics) recordLookup(provider, tier string, hit bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.Bool("cache.hit", hit),
	}
	if tier != "" {
		attrs = append(attrs, attribute.String("cache.tier", tier))
	}
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
