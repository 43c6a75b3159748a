package trip

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// RouteFetcher queries the routing backend for candidate routes.
type RouteFetcher interface {
	FetchRoutes(ctx context.Context, origin, destination string) ([]RouteSummary, error)
}

// SessionConfig holds configuration for a trip session.
type SessionConfig struct {
	// Fetcher is the routing backend client (required).
	Fetcher RouteFetcher

	// Resolver turns summaries into colored routes (required).
	Resolver *Resolver

	// OnChange is called after every committed transition, while the session is locked.
	// It must not call back into the session.
	OnChange func(State)

	// Logger for session transitions.
	Logger zerolog.Logger
}

// Session owns the Idle -> Loading -> Ready|Failed lifecycle of one trip interaction.
// Submit is the only writer; State may be read from any goroutine.
type Session struct {
	fetcher  RouteFetcher
	resolver *Resolver
	onChange func(State)
	logger   zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// NewSession creates a session in the Idle state.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
		state:    Idle(),
	}
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Submit starts a new fetch/resolve pipeline for q and blocks until it settles.
// It is valid from any state: prior routes are cleared immediately, and any
// in-flight submission is cancelled. If a newer Submit starts before this one
// settles, this pipeline's outcome is discarded and the returned state is the
// session's current (newer) state.
func (s *Session) Submit(ctx context.Context, q TripQuery) State {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.setLocked(Loading(q, gen))
	s.mu.Unlock()

	s.logger.Debug().
		Uint64("generation", gen).
		Str("origin", q.Origin).
		Str("destination", q.Destination).
		Msg("trip submitted")

	if err := q.Validate(); err != nil {
		return s.commit(gen, Failed(err.Error(), gen))
	}

	summaries, err := s.fetcher.FetchRoutes(runCtx, q.Origin, q.Destination)
	if err != nil {
		s.logger.Error().Err(err).
			Uint64("generation", gen).
			Msg("fetching routes failed")
		return s.commit(gen, Failed(err.Error(), gen))
	}

	routes := s.resolver.Resolve(runCtx, q, summaries)

	s.logger.Debug().
		Uint64("generation", gen).
		Int("summary_count", len(summaries)).
		Int("route_count", len(routes)).
		Str("strategy", s.resolver.Strategy().String()).
		Msg("routes resolved")

	return s.commit(gen, Ready(routes, summaries, gen))
}

// commit applies next only if gen is still the latest submission.
func (s *Session) commit(gen uint64, next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug().
			Uint64("generation", gen).
			Uint64("current_generation", s.generation).
			Str("status", next.Status.String()).
			Msg("discarding superseded result")
		return s.state.clone()
	}

	s.cancel = nil
	s.setLocked(next)
	return s.state.clone()
}

func (s *Session) setLocked(next State) {
	s.state = next
	if s.onChange != nil {
		s.onChange(next.clone())
	}
}
