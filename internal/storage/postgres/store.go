package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matrixise/token-ledger/internal/storage"
)

// DBTX is the query surface shared by the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store on PostgreSQL. Outside WithTx queries run
// against the pool; inside, against the open transaction.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
}

// Compile-time interface checks.
var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Store)(nil)
)

// NewStore creates a Store over an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// WithTx runs fn inside one database transaction at Read Committed. Any
// error from fn rolls the whole unit back. A unit aborted by the server as
// a deadlock victim or serialization failure surfaces as ErrConflict; the
// rollback is complete, so the caller may retry the whole unit.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err := pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, db: tx})
	})
	if err != nil && isConcurrencyError(err) {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
