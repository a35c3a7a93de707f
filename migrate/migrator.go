package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stokaro/tenancy/partition"
)

// Tx is the transactional surface a migration runs on. pgx.Tx satisfies it.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is the database surface the migrator needs: transactions for applying
// migrations, direct queries for reading migration state.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolDB adapts a pgxpool.Pool to the DB interface.
type PoolDB struct {
	pool *pgxpool.Pool
}

// NewPoolDB wraps a pool for use by the migrator.
func NewPoolDB(pool *pgxpool.Pool) PoolDB {
	return PoolDB{pool: pool}
}

func (p PoolDB) Begin(ctx context.Context) (Tx, error) {
	return p.pool.Begin(ctx)
}

func (p PoolDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p PoolDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Migrator applies the provider's migration set to partition schemas. One
// migrator instance serves many schemas; the per-schema state lives in each
// schema's own schema_migrations table.
type Migrator struct {
	db       DB
	provider MigrationProvider
	logger   *slog.Logger
}

// NewMigrator creates a migrator with the given database and provider.
func NewMigrator(db DB, provider MigrationProvider) *Migrator {
	return &Migrator{db: db, provider: provider, logger: slog.Default()}
}

// NewFSMigrator creates a migrator that loads its migration set from a
// filesystem following the NNNN_description.up.sql naming convention.
func NewFSMigrator(db DB, fsys fs.FS) (*Migrator, error) {
	provider, err := NewFSMigrationProvider(fsys)
	if err != nil {
		return nil, err
	}
	return NewMigrator(db, provider), nil
}

// WithLogger sets the logger for the migrator.
func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// MigrationProvider returns the migration provider.
func (m *Migrator) MigrationProvider() MigrationProvider {
	return m.provider
}

func trackingTable(schema string) string {
	return partition.Qualify(schema, "schema_migrations")
}

// Initialize creates the schema_migrations table inside the target schema if
// it does not exist.
func (m *Migrator) Initialize(ctx context.Context, schema string) error {
	sql := "CREATE TABLE IF NOT EXISTS " + trackingTable(schema) +
		" (version BIGINT PRIMARY KEY, description TEXT NOT NULL, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"
	if _, err := m.db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create migrations table in %q: %w", schema, err)
	}
	return nil
}

// CurrentVersion returns the highest applied migration version in the target
// schema, 0 when none have been applied.
func (m *Migrator) CurrentVersion(ctx context.Context, schema string) (int, error) {
	if err := m.Initialize(ctx, schema); err != nil {
		return 0, err
	}
	var version int
	row := m.db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM "+trackingTable(schema))
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version of %q: %w", schema, err)
	}
	return version, nil
}

// PendingVersions returns the migration versions not yet applied to the
// target schema.
func (m *Migrator) PendingVersions(ctx context.Context, schema string) ([]int, error) {
	currentVersion, err := m.CurrentVersion(ctx, schema)
	if err != nil {
		return nil, err
	}
	var pending []int
	for _, migration := range m.provider.Migrations() {
		if migration.Version > currentVersion {
			pending = append(pending, migration.Version)
		}
	}
	return pending, nil
}

// MigrateUp brings the target schema to the latest version, applying each
// pending migration in its own transaction with search_path pinned to the
// schema. A failure leaves previously committed migrations in place and the
// failing one rolled back; a retry resumes from the failure point.
func (m *Migrator) MigrateUp(ctx context.Context, schema string) error {
	if err := m.Initialize(ctx, schema); err != nil {
		return err
	}

	currentVersion, err := m.CurrentVersion(ctx, schema)
	if err != nil {
		return err
	}

	migrations := m.provider.Migrations()
	m.logger.Info("Migrating partition up", "schema", schema, "currentVersion", currentVersion, "totalMigrations", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		m.logger.Info("Applying migration", "schema", schema, "version", migration.Version, "description", migration.Description)

		if err := m.applyOne(ctx, schema, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d to %q: %w", migration.Version, schema, err)
		}

		m.logger.Info("Applied migration", "schema", schema, "version", migration.Version, "description", migration.Description)
	}

	return nil
}

func (m *Migrator) applyOne(ctx context.Context, schema string, migration *Migration) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// SET LOCAL scopes the search_path to this transaction, so concurrent
	// migrations of different partitions on the same pool cannot bleed into
	// each other.
	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+partition.QuoteIdentifier(schema)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to set search_path: %w", err)
	}

	if err := migration.Up(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO "+trackingTable(schema)+" (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
