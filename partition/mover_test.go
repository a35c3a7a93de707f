package partition_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/tenant"
)

var movertestTables = []partition.Table{
	{Name: "customers", Columns: []string{"id", "name"}, Conflict: []string{"id"}},
	{Name: "projects", Columns: []string{"id", "name", "customer_id"}, Conflict: []string{"id"}},
}

// fakeQuerier records executed statements and fails on demand.
type fakeQuerier struct {
	executed  []string
	args      [][]any
	failTable string
	rowsPer   int64
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failTable != "" && strings.Contains(sql, f.failTable) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	f.executed = append(f.executed, sql)
	f.args = append(f.args, args)
	verb := "INSERT 0"
	if strings.HasPrefix(sql, "DELETE") {
		verb = "DELETE"
	}
	return pgconn.NewCommandTag(verb + " " + strconv.FormatInt(f.rowsPer, 10)), nil
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return staticRow{n: f.rowsPer}
}

type staticRow struct{ n int64 }

func (r staticRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.n
	return nil
}

func TestMover_CopyTenantRows(t *testing.T) {
	c := qt.New(t)

	q := &fakeQuerier{rowsPer: 3}
	mover := partition.NewMover(q, movertestTables)

	total, err := mover.CopyTenantRows(context.Background(), tenant.SharedPartition, "tenant_0a1b2c3d4e5f", "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(6))
	c.Assert(q.executed, qt.HasLen, 2)
	for i, sql := range q.executed {
		c.Assert(sql, qt.Contains, "ON CONFLICT", qt.Commentf("statement %d is not an upsert", i))
		c.Assert(q.args[i], qt.DeepEquals, []any{"acme"})
	}
}

func TestMover_CopyTenantRows_FailureIsTyped(t *testing.T) {
	c := qt.New(t)

	q := &fakeQuerier{rowsPer: 3, failTable: "projects"}
	mover := partition.NewMover(q, movertestTables)

	_, err := mover.CopyTenantRows(context.Background(), tenant.SharedPartition, "tenant_0a1b2c3d4e5f", "acme")
	var copyErr *tenant.CopyError
	c.Assert(errors.As(err, &copyErr), qt.IsTrue)
	c.Assert(copyErr.Table, qt.Equals, "projects")
	c.Assert(copyErr.TenantKey, qt.Equals, "acme")
}

func TestMover_DeleteTenantRows(t *testing.T) {
	c := qt.New(t)

	q := &fakeQuerier{rowsPer: 4}
	mover := partition.NewMover(q, movertestTables)

	total, err := mover.DeleteTenantRows(context.Background(), tenant.SharedPartition, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(8))
	for i, sql := range q.executed {
		c.Assert(sql, qt.Contains, "WHERE tenant_key = $1", qt.Commentf("statement %d is unscoped", i))
	}
}

func TestMover_DeleteTenantRows_FailureIsTyped(t *testing.T) {
	c := qt.New(t)

	q := &fakeQuerier{rowsPer: 4, failTable: "customers"}
	mover := partition.NewMover(q, movertestTables)

	_, err := mover.DeleteTenantRows(context.Background(), tenant.SharedPartition, "acme")
	var cleanupErr *tenant.CleanupError
	c.Assert(errors.As(err, &cleanupErr), qt.IsTrue)
	c.Assert(cleanupErr.Table, qt.Equals, "customers")
}

func TestMover_CountTenantRows(t *testing.T) {
	c := qt.New(t)

	q := &fakeQuerier{rowsPer: 5}
	mover := partition.NewMover(q, movertestTables)

	total, err := mover.CountTenantRows(context.Background(), tenant.SharedPartition, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(10))
}
