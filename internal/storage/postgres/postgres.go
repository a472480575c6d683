// Package postgres implements the storage contract on PostgreSQL via pgx.
//
// Isolation contract: units of work run at Read Committed; every balance row
// that will be debited or held is first locked with SELECT ... FOR UPDATE,
// and credits are ON CONFLICT upserts. That serializes competing writers on
// the same (holder, token) row. Units touching two rows can still deadlock
// (an upsert locks the existing target row, so opposing transfers acquire
// the same two locks in opposite order); PostgreSQL aborts one victim, the
// whole unit rolls back, and WithTx reports it as storage.ErrConflict.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes.
const (
	pgErrUniqueViolation      = "23505" // unique_violation
	pgErrCheckViolation       = "23514" // check_violation
	pgErrFKViolation          = "23503" // foreign_key_violation
	pgErrSerializationFailure = "40001" // serialization_failure
	pgErrDeadlockDetected     = "40P01" // deadlock_detected
)

// NewPool creates a tuned pgx connection pool with shopspring decimal
// codecs registered on every connection, so NUMERIC columns scan directly
// into decimal.Decimal.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return pool, nil
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// isConstraintError checks for check and foreign-key violations.
func isConstraintError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCheckViolation || pgErr.Code == pgErrFKViolation
	}
	return false
}

// isConcurrencyError checks for transaction aborts caused by concurrent
// units: deadlock victims and serialization failures. The aborted unit is
// fully rolled back and safe to retry.
func isConcurrencyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrDeadlockDetected || pgErr.Code == pgErrSerializationFailure
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
