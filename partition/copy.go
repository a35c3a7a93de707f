package partition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stokaro/tenancy/tenant"
)

// Discriminator is the tenant key column present on every tenant-scoped
// table. It carries a value only in the shared partition; rows copied into a
// dedicated partition have it stripped to NULL.
const Discriminator = "tenant_key"

// Table describes one tenant-scoped table for the bulk copy/delete
// primitives. Columns lists every column except the discriminator; Conflict
// lists the primary key columns the upsert-style copy converges on. Table
// sets are declared parents-first: copies run in declaration order and
// deletes in reverse, keeping foreign keys satisfied throughout.
type Table struct {
	Name     string
	Columns  []string
	Conflict []string
}

// BuildCopySQL renders the statement that copies one tenant's rows of table t
// from the src partition into dst, stripping the discriminator value. The
// tenant key is the single bind parameter. ON CONFLICT DO NOTHING makes the
// copy an idempotent upsert: re-running after a partial failure converges
// instead of duplicating.
func BuildCopySQL(src, dst string, t Table) string {
	cols := strings.Join(t.Columns, ", ")
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(Qualify(dst, t.Name))
	b.WriteString(" (")
	b.WriteString(cols)
	b.WriteString(", ")
	b.WriteString(Discriminator)
	b.WriteString(") SELECT ")
	b.WriteString(cols)
	b.WriteString(", NULL FROM ")
	b.WriteString(Qualify(src, t.Name))
	b.WriteString(" WHERE ")
	b.WriteString(Discriminator)
	b.WriteString(" = $1 ON CONFLICT (")
	b.WriteString(strings.Join(t.Conflict, ", "))
	b.WriteString(") DO NOTHING")
	return b.String()
}

// BuildDeleteSQL renders the statement that removes one tenant's rows of
// table t from the given partition, scoped strictly by the discriminator.
func BuildDeleteSQL(partition string, t Table) string {
	return "DELETE FROM " + Qualify(partition, t.Name) + " WHERE " + Discriminator + " = $1"
}

// BuildCountSQL renders the statement counting one tenant's rows of table t
// in the given partition. In the shared partition the count is scoped by the
// discriminator; in a dedicated partition every row belongs to the tenant.
func BuildCountSQL(partition string, t Table) string {
	sql := "SELECT count(*) FROM " + Qualify(partition, t.Name)
	if tenant.IsShared(partition) {
		sql += " WHERE " + Discriminator + " = $1"
	}
	return sql
}

// Mover implements the two infrastructure primitives the upgrader consumes:
// bulk copy of one tenant's rows between partitions and tenant-scoped delete.
// It is driven by a fixed table set describing every tenant-scoped table.
type Mover struct {
	q      Querier
	tables []Table
	logger *slog.Logger
}

// NewMover creates a mover over the given querier and table set.
func NewMover(q Querier, tables []Table) *Mover {
	return &Mover{q: q, tables: tables, logger: slog.Default()}
}

// WithLogger sets the logger for the mover.
func (m *Mover) WithLogger(l *slog.Logger) *Mover {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// Tables returns the table set the mover operates on.
func (m *Mover) Tables() []Table {
	return m.tables
}

// CopyTenantRows copies all rows belonging to tenantKey from the src
// partition into dst, table by table, and returns the total number of rows
// inserted. Safe to re-run: already-copied rows are skipped by the upsert.
func (m *Mover) CopyTenantRows(ctx context.Context, src, dst, tenantKey string) (int64, error) {
	var total int64
	for _, t := range m.tables {
		tag, err := m.q.Exec(ctx, BuildCopySQL(src, dst, t), tenantKey)
		if err != nil {
			return total, &tenant.CopyError{TenantKey: tenantKey, Table: t.Name, Err: err}
		}
		m.logger.Debug("Copied tenant rows", "table", t.Name, "src", src, "dst", dst, "rows", tag.RowsAffected())
		total += tag.RowsAffected()
	}
	return total, nil
}

// DeleteTenantRows deletes all rows belonging to tenantKey from the given
// partition and returns the total number of rows removed. Tables are visited
// in reverse declaration order so child rows go before the parents they
// reference. Idempotent: a second run deletes nothing.
func (m *Mover) DeleteTenantRows(ctx context.Context, partition, tenantKey string) (int64, error) {
	var total int64
	for i := len(m.tables) - 1; i >= 0; i-- {
		t := m.tables[i]
		tag, err := m.q.Exec(ctx, BuildDeleteSQL(partition, t), tenantKey)
		if err != nil {
			return total, &tenant.CleanupError{TenantKey: tenantKey, Table: t.Name, Err: err}
		}
		m.logger.Debug("Deleted tenant rows", "table", t.Name, "partition", partition, "rows", tag.RowsAffected())
		total += tag.RowsAffected()
	}
	return total, nil
}

// CountTenantRows counts the rows belonging to tenantKey across all
// tenant-scoped tables in the given partition.
func (m *Mover) CountTenantRows(ctx context.Context, partition, tenantKey string) (int64, error) {
	var total int64
	for _, t := range m.tables {
		var n int64
		var row interface{ Scan(...any) error }
		if tenant.IsShared(partition) {
			row = m.q.QueryRow(ctx, BuildCountSQL(partition, t), tenantKey)
		} else {
			row = m.q.QueryRow(ctx, BuildCountSQL(partition, t))
		}
		if err := row.Scan(&n); err != nil {
			return total, fmt.Errorf("failed to count rows in %s.%s: %w", partition, t.Name, err)
		}
		total += n
	}
	return total, nil
}
