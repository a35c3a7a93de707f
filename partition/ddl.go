package partition

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/stokaro/tenancy/schemaid"
	"github.com/stokaro/tenancy/tenant"
)

// QuoteIdentifier quotes a schema or table name for safe interpolation into
// DDL. Partition names are digest-derived and pattern-checked before they get
// here, so quoting is belt and braces rather than the primary defence.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// Qualify returns the quoted schema-qualified form of a table name.
func Qualify(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// validPartitionName accepts the reserved shared partition and names produced
// by the schema identifier. Anything else never reaches DDL.
func validPartitionName(name string) error {
	if tenant.IsShared(name) || schemaid.IsGenerated(name) {
		return nil
	}
	return fmt.Errorf("%w: %q is not a valid partition name", tenant.ErrInvalidInput, name)
}

// CreateSchema creates the named partition schema if it does not exist.
// Schema DDL can take seconds on a busy cluster; callers must never hold a
// lock that blocks other tenants' traffic across this call, and none of the
// callers in this module do.
func (db *DB) CreateSchema(ctx context.Context, name string) error {
	if err := validPartitionName(name); err != nil {
		return err
	}
	db.logger.Info("Creating partition schema", "schema", name)
	_, err := db.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("failed to create schema %q: %w", name, err)
	}
	return nil
}

// SchemaExists reports whether the named schema is present in the catalog.
func (db *DB) SchemaExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schema %q: %w", name, err)
	}
	return exists, nil
}

// DropSchema removes a partition schema and everything in it. Operator
// tooling only: the lifecycle code never drops a partition, it marks the
// tenant record FAILED and leaves the schema for inspection.
func (db *DB) DropSchema(ctx context.Context, name string) error {
	if err := validPartitionName(name); err != nil {
		return err
	}
	if tenant.IsShared(name) {
		return fmt.Errorf("%w: refusing to drop the shared partition", tenant.ErrInvalidInput)
	}
	db.logger.Warn("Dropping partition schema", "schema", name)
	_, err := db.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+QuoteIdentifier(name)+" CASCADE")
	if err != nil {
		return fmt.Errorf("failed to drop schema %q: %w", name, err)
	}
	return nil
}
