package partition

import (
	"context"
	"fmt"
	"strings"

	"github.com/stokaro/tenancy/tenant"
)

// Scope enforces the tenant-scoping convention: every statement against a
// tenant-scoped table in the shared partition carries the discriminator
// predicate, appended here rather than left to caller discipline. Statements
// bound to a dedicated partition need no predicate because the schema itself
// is the isolation boundary.
type Scope struct {
	tc tenant.Context
}

// NewScope builds a scope from the tenant context bound on ctx. Unbound
// contexts fail with tenant.ErrContextNotBound: an unscoped statement against
// the shared partition is the cross-tenant bug this type exists to prevent.
func NewScope(ctx context.Context) (Scope, error) {
	tc, err := tenant.FromContext(ctx)
	if err != nil {
		return Scope{}, err
	}
	if tc.OrgID == "" {
		return Scope{}, fmt.Errorf("%w: bound context has no org id", tenant.ErrContextNotBound)
	}
	return Scope{tc: tc}, nil
}

// Partition returns the partition all statements built from this scope
// target.
func (s Scope) Partition() string {
	return s.tc.Partition
}

// Apply rewrites stmt so it targets the scope's partition and, when that is
// the shared partition, appends the discriminator predicate with the tenant's
// org id as an extra bind argument. stmt references its table via the %s
// placeholder and must already contain a WHERE clause or none at all.
func (s Scope) Apply(stmt, table string, args []any) (string, []any) {
	sql := fmt.Sprintf(stmt, Qualify(s.tc.Partition, table))
	if !tenant.IsShared(s.tc.Partition) {
		return sql, args
	}
	predicate := fmt.Sprintf("%s = $%d", Discriminator, len(args)+1)
	if containsWhere(sql) {
		sql += " AND " + predicate
	} else {
		sql += " WHERE " + predicate
	}
	return sql, append(args, s.tc.OrgID)
}

func containsWhere(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), " WHERE ")
}
