// Package postgres provides the Postgres-backed persistence gateway for
// telemetry records: pool lifecycle, idempotent schema bootstrap, health
// probing and the insert operations.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dataforge-analytics/collector/internal/event"
	"github.com/dataforge-analytics/collector/internal/retry"
)

// Config controls the Postgres connection pool and bootstrap retry bounds.
type Config struct {
	DSN               string
	MinConns          int32
	MaxConns          int32
	IdleTimeout       time.Duration
	ConnectTimeout    time.Duration
	BootstrapAttempts int
	BootstrapBackoff  time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// schema creates both telemetry tables and their indexes. Every statement is
// idempotent so bootstrap can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS pageviews (
	id BIGSERIAL PRIMARY KEY,
	url VARCHAR(2048) NOT NULL,
	user_agent VARCHAR(512),
	ip_address INET NOT NULL,
	page_load_time INT CHECK (page_load_time BETWEEN 0 AND 60000),
	screen_resolution VARCHAR(20),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS pageviews_created_at_idx ON pageviews(created_at);
CREATE INDEX IF NOT EXISTS pageviews_url_idx ON pageviews(url);

CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	url VARCHAR(2048) NOT NULL,
	user_agent VARCHAR(512) NOT NULL,
	ip_address INET NOT NULL,
	event_name VARCHAR(64) NOT NULL,
	event_category VARCHAR(64) NOT NULL,
	event_label VARCHAR(64),
	payload JSONB CHECK (octet_length(payload::text) <= 2048),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS events_created_at_idx ON events(created_at);
CREATE INDEX IF NOT EXISTS events_event_name_idx ON events(event_name);
CREATE INDEX IF NOT EXISTS events_event_category_idx ON events(event_category);
`

// migrate holds additive column migrations tolerated on pre-existing tables.
const migrate = `
ALTER TABLE pageviews
ADD COLUMN IF NOT EXISTS screen_resolution VARCHAR(20)
`

// Store is the persistence gateway. It is an injectable service object: the
// API layer receives it (or a fake) rather than reaching for a singleton.
type Store struct {
	pool   pgxPool
	logger *zap.Logger
	policy retry.Policy

	bootstrapMu sync.Mutex
	ready       atomic.Bool
}

// New connects a pool using cfg and returns an un-bootstrapped store.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.IdleTimeout > 0 {
		poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newStore(pool, cfg, logger), nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, cfg Config, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newStore(pool, cfg, logger), nil
}

func newStore(pool pgxPool, cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.BootstrapAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := cfg.BootstrapBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Store{
		pool:   pool,
		logger: logger,
		policy: retry.Policy{
			Attempts:       attempts,
			InitialBackoff: backoff,
			Multiplier:     2,
		},
	}
}

// Bootstrap creates the schema, retrying with exponential backoff. The first
// success flips the ready flag; later calls are no-ops. Exhausting retries
// returns an error the caller must treat as fatal: the service must not
// accept traffic with an unknown schema state.
func (s *Store) Bootstrap(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	attempt := 0
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		attempt++
		if err := s.applySchema(ctx); err != nil {
			s.logger.Warn("schema bootstrap attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	s.ready.Store(true)
	s.logger.Info("analytics tables initialized")
	return nil
}

// applySchema runs table/index creation and additive migrations in a single
// transaction so a partial failure leaves nothing behind.
func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if _, err := tx.Exec(ctx, migrate); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ready reports whether bootstrap has completed. The flag is one-way: a
// post-bootstrap outage is visible through Healthy, never here.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// Healthy runs a trivial round-trip query. Any error, including timeout,
// means unhealthy. It never panics and never returns an error.
func (s *Store) Healthy(ctx context.Context) bool {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		s.logger.Warn("database health check failed", zap.Error(err))
		return false
	}
	return one == 1
}

// InsertPageview stores a consented pageview row.
func (s *Store) InsertPageview(ctx context.Context, rec event.PageviewRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pageviews (url, user_agent, ip_address, page_load_time, screen_resolution)
VALUES ($1, $2, $3, $4, $5)`,
		rec.URL,
		rec.UserAgent,
		rec.IPAddress,
		rec.PageLoadTime,
		rec.ScreenResolution,
	)
	if err != nil {
		return fmt.Errorf("insert pageview: %w", err)
	}
	return nil
}

// InsertEvent stores an interaction-event row.
func (s *Store) InsertEvent(ctx context.Context, rec event.EventRecord) error {
	var payload any
	if rec.Payload != nil {
		payload = rec.Payload
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO events (url, user_agent, ip_address, event_name, event_category, event_label, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.URL,
		rec.UserAgent,
		rec.IPAddress,
		rec.Name,
		rec.Category,
		rec.Label,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertAnonPageview stores the minimal-data anonymous pageview row.
func (s *Store) InsertAnonPageview(ctx context.Context, rec event.PageviewRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pageviews (url, user_agent, ip_address)
VALUES ($1, $2, $3)`,
		rec.URL,
		rec.UserAgent,
		rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert anonymous pageview: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources. In-flight queries finish
// before the pool shuts down.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
