// Package pg is the Postgres-backed implementation of
// github.com/relaypay/switchcore/internal/store.Store, built on pgx/v5
// and pgxpool. Every "claim next due work" query is a single atomic
// UPDATE ... RETURNING over a FOR UPDATE SKIP LOCKED subselect that
// stamps a short claim lease onto the row, so concurrent worker
// instances never double-process the same item and a crashed worker's
// claim expires on its own.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/txn"
)

// claimLeaseSeconds is how long a claimed row stays invisible to other
// workers. A worker that crashes mid-item simply lets the lease lapse
// and the row becomes claimable again — no manual unlock step exists.
// Sixty seconds comfortably covers one Gateway round-trip (30 s cap)
// plus the store writes around it.
const claimLeaseSeconds = 60

// Store is a [store.Store] backed by a pgxpool.Pool. The zero value is
// not usable; build one with [New].
type Store struct {
	pool    *pgxpool.Pool
	watcher *txn.Watcher
}

var _ store.Store = (*Store)(nil)

// New connects to dsn with a pool sized poolSize and runs [Migrate]
// before returning, so a fresh deployment against an empty database
// comes up schema-ready. watcher may be nil.
func New(ctx context.Context, dsn string, poolSize int32, watcher *txn.Watcher) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = poolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &Store{pool: pool, watcher: watcher}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
