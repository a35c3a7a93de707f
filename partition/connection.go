// Package partition is the storage layer of the tenancy subsystem. It wraps a
// Postgres connection pool and exposes the partition-level primitives the rest
// of the system is built on: schema DDL, bulk tenant-row movement between
// partitions, and the mandatory tenant-scoping convention for statements
// against the shared partition.
//
// A partition is a Postgres schema. The reserved shared partition holds all
// BASIC-tier tenants' rows discriminated by a tenant key column; dedicated
// partitions hold exactly one tenant's rows.
package partition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool the partition primitives need.
// Transactions and pools both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps the shared connection pool used for all partition operations.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool, logger: slog.Default()}, nil
}

// WithLogger sets the logger for the connection wrapper.
func (db *DB) WithLogger(l *slog.Logger) *DB {
	tmp := *db
	tmp.logger = l
	return &tmp
}

// Pool exposes the underlying pool for components that run their own SQL.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close releases the pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
