// Package registry holds the durable control state of the tenancy subsystem:
// the partition mapping table that is the single source of truth for "where
// does tenant X live right now", and the tenant records that track each
// tenant's provisioning lifecycle.
//
// Two implementations are provided, Postgres for production and in-memory for
// tests and local development.
package registry

import (
	"context"

	"github.com/stokaro/tenancy/tenant"
)

// Registry is the authoritative tenant key → partition name mapping. Nothing
// else in the system may cache a lookup result beyond the lifetime of one
// request or job iteration.
type Registry interface {
	// Lookup resolves the tenant's current partition. Read-only, no side
	// effects. Returns tenant.ErrNotFound when no mapping exists.
	Lookup(ctx context.Context, tenantKey string) (string, error)

	// CreateMapping inserts the mapping if absent and returns the partition
	// the tenant is mapped to afterwards. If a mapping already exists the
	// existing partition is returned unchanged: concurrent provisioning
	// attempts for the same tenant converge instead of conflicting.
	CreateMapping(ctx context.Context, tenantKey, partition string) (string, error)

	// Repoint atomically overwrites the tenant's mapping. This is the single
	// commit point of a tier upgrade: once Repoint returns, every new lookup
	// resolves to the new partition. In-flight requests holding the old
	// partition finish against stale-but-still-present data.
	Repoint(ctx context.Context, tenantKey, newPartition string) error
}

// Records is the durable store of tenant lifecycle state. Records are
// created PENDING and never deleted; the only mutations are the documented
// state transitions below plus plan/tier sync.
type Records interface {
	// Create inserts a PENDING record for a new tenant. Replayed signups
	// converge on the existing record instead of erroring.
	Create(ctx context.Context, rec tenant.Record) (tenant.Record, error)

	// Get returns the record for the given tenant key, or tenant.ErrNotFound.
	Get(ctx context.Context, tenantKey string) (tenant.Record, error)

	// List returns all tenant records, ordered by tenant key.
	List(ctx context.Context) ([]tenant.Record, error)

	// SetState applies a provisioning state transition.
	SetState(ctx context.Context, tenantKey string, state tenant.ProvisioningState) error

	// SetPlan records the billing plan reference and the tier it maps to.
	SetPlan(ctx context.Context, tenantKey, planID string, tier tenant.Tier) error
}
