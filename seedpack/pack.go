// Package seedpack applies baseline seed data (starter catalogs, templates)
// per tenant, and keeps it applied. Packs are versioned; a per-tenant ledger
// records which pack versions have been applied, so the reconciler only does
// work when a pack is missing or has been republished at a newer version.
// Every pack application is itself idempotent, guarded by existence checks,
// so the reconciler can run at provisioning time, on a schedule, or ad hoc
// with no duplication risk.
package seedpack

import (
	"context"
	"fmt"
	"sync"

	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/tenant"
)

// ApplyFunc applies one pack for one tenant. The context carries the bound
// tenant context; q targets the cluster the tenant's partition lives on.
// Implementations must be idempotent.
type ApplyFunc func(ctx context.Context, q partition.Querier) error

// Pack is one versioned unit of baseline seed data. Bumping Version causes
// the reconciler to reapply the pack to every tenant on its next sweep.
type Pack struct {
	ID      string
	Version int
	Apply   ApplyFunc
}

// Ledger is the per-tenant record of applied packs. Append-only: a
// reapplication at a newer version adds a row, it never rewrites history.
type Ledger interface {
	// AppliedVersion returns the highest version of the pack applied to the
	// tenant, 0 when the pack has never been applied.
	AppliedVersion(ctx context.Context, tenantKey, packID string) (int, error)

	// RecordApplication appends an application entry. Recording the same
	// (tenant, pack, version) twice is a no-op.
	RecordApplication(ctx context.Context, tenantKey, packID string, version int) error
}

// MemoryLedger is an in-memory Ledger for tests and local development.
type MemoryLedger struct {
	mu      sync.Mutex
	applied map[string]int // tenantKey + "\x00" + packID -> max version
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{applied: make(map[string]int)}
}

func ledgerKey(tenantKey, packID string) string {
	return tenantKey + "\x00" + packID
}

func (l *MemoryLedger) AppliedVersion(_ context.Context, tenantKey, packID string) (int, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applied[ledgerKey(tenantKey, packID)], nil
}

func (l *MemoryLedger) RecordApplication(_ context.Context, tenantKey, packID string, version int) error {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return err
	}
	if version <= 0 {
		return fmt.Errorf("%w: pack version must be positive", tenant.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(tenantKey, packID)
	if version > l.applied[key] {
		l.applied[key] = version
	}
	return nil
}
