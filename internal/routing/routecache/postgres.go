// Package routecache persists route search results in PostgreSQL so that API
// replicas and the warm-up worker share one cache.
package routecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tripmap/tripmap/internal/routing"
)

const schema = `
	CREATE TABLE IF NOT EXISTS route_cache (
		cache_key  TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		provider   TEXT NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL implementation of routing.Store.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgreSQL route cache.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating route_cache table: %w", err)
	}
	return nil
}

// Load returns the cached set for key, or routing.ErrCacheMiss.
func (s *PostgresStore) Load(ctx context.Context, key string) (*routing.RouteSet, error) {
	query := `
		SELECT payload, fetched_at
		FROM route_cache
		WHERE cache_key = $1
	`

	var payload []byte
	var fetchedAt time.Time
	if err := s.db.QueryRow(ctx, query, key).Scan(&payload, &fetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, routing.ErrCacheMiss
		}
		return nil, err
	}

	var set routing.RouteSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("decoding cached routes for %s: %w", key, err)
	}
	set.FetchedAt = fetchedAt

	return &set, nil
}

// Save upserts set under key.
func (s *PostgresStore) Save(ctx context.Context, key string, set *routing.RouteSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding routes: %w", err)
	}

	query := `
		INSERT INTO route_cache (cache_key, payload, provider, fetched_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			provider = EXCLUDED.provider,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = now()
	`

	_, err = s.db.Exec(ctx, query, key, payload, set.Provider, set.FetchedAt)
	return err
}

// Purge deletes entries fetched before cutoff and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM route_cache WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
