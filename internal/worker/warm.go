package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/routing"
)

// RouteFinder searches routes and fills the caches behind it.
type RouteFinder interface {
	FindRoutes(ctx context.Context, origin, destination string) (*routing.RouteSet, error)
}

// Purger deletes shared cache entries fetched before cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// WarmJob runs route searches so later user requests hit the cache.
type WarmJob struct {
	config WarmConfig
	finder RouteFinder
	purger Purger
	logger zerolog.Logger

	metricsMu sync.RWMutex
	metrics   WarmMetrics
}

// WarmMetrics tracks warm job statistics across runs.
type WarmMetrics struct {
	TotalRuns   int64
	Warmed      int64
	Empty       int64
	Failed      int64
	Purged      int64
	LastRunAt   time.Time
	LastRunTook time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config WarmConfig
	Finder RouteFinder
	// Purger is optional; without it cache_purge jobs are no-ops.
	Purger Purger
	Logger zerolog.Logger
}

// NewWarmJob creates a new warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	return &WarmJob{
		config: cfg.Config.withDefaults(),
		finder: cfg.Finder,
		purger: cfg.Purger,
		logger: cfg.Logger,
	}
}

// WarmResult contains the outcome of one warm run.
type WarmResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalTrips int
	// Warmed trips returned at least one route.
	Warmed int
	// Empty trips have no drivable route; that is an answer, not a failure.
	Empty  int
	Failed int
	Errors []WarmError
}

// WarmError records a failed trip.
type WarmError struct {
	Trip  Trip
	Error string
}

// Run warms trips, or the configured defaults when trips is empty.
func (j *WarmJob) Run(ctx context.Context, trips []Trip) *WarmResult {
	if len(trips) == 0 {
		trips = j.config.Trips
	}
	trips = SortTrips(trips)

	startTime := time.Now()
	result := &WarmResult{
		StartTime:  startTime,
		TotalTrips: len(trips),
	}

	j.logger.Info().
		Int("total_trips", result.TotalTrips).
		Int("concurrency", j.config.Concurrency).
		Msg("starting route warm job")

	tripsChan := make(chan Trip, len(trips))
	resultsChan := make(chan tripResult, len(trips))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, tripsChan, resultsChan)
		}()
	}

	for _, trip := range trips {
		tripsChan <- trip
	}
	close(tripsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		switch {
		case tr.err == nil:
			result.Warmed++
		case errors.Is(tr.err, routing.ErrNoRouteFound):
			result.Empty++
		default:
			result.Failed++
			result.Errors = append(result.Errors, WarmError{Trip: tr.trip, Error: tr.err.Error()})
		}
	}

	// Trips never started because ctx was cancelled count as failed.
	if skipped := result.TotalTrips - result.Warmed - result.Empty - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("empty", result.Empty).
		Int("failed", result.Failed).
		Msg("route warm job completed")

	return result
}

type tripResult struct {
	trip Trip
	err  error
}

func (j *WarmJob) warmWorker(ctx context.Context, trips <-chan Trip, results chan<- tripResult) {
	for trip := range trips {
		if ctx.Err() != nil {
			return
		}
		results <- tripResult{trip: trip, err: j.warmTrip(ctx, trip)}
	}
}

func (j *WarmJob) warmTrip(ctx context.Context, trip Trip) error {
	tripCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	set, err := j.finder.FindRoutes(tripCtx, trip.Origin, trip.Destination)
	if err != nil {
		j.logger.Debug().Err(err).
			Str("origin", trip.Origin).
			Str("destination", trip.Destination).
			Msg("warming trip failed")
		return err
	}

	j.logger.Debug().
		Str("origin", trip.Origin).
		Str("destination", trip.Destination).
		Int("route_count", len(set.Routes)).
		Msg("trip warmed")
	return nil
}

// Purge removes shared cache rows older than the configured age.
// It returns 0 without error when no Purger is configured.
func (j *WarmJob) Purge(ctx context.Context) (int64, error) {
	if j.purger == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-j.config.PurgeOlderThan)
	n, err := j.purger.Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	j.metricsMu.Lock()
	j.metrics.Purged += n
	j.metricsMu.Unlock()

	j.logger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("purged route cache")
	return n, nil
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metricsMu.Lock()
	defer j.metricsMu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Warmed += int64(result.Warmed)
	j.metrics.Empty += int64(result.Empty)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunTook = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metricsMu.RLock()
	defer j.metricsMu.RUnlock()
	return j.metrics
}
