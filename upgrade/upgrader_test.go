package upgrade_test

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/tenancy/provision"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/schemaid"
	"github.com/stokaro/tenancy/tenant"
	"github.com/stokaro/tenancy/upgrade"
)

type fakeSchemas struct{ created []string }

func (f *fakeSchemas) CreateSchema(_ context.Context, name string) error {
	f.created = append(f.created, name)
	return nil
}

type fakeMigrator struct{ migrated []string }

func (f *fakeMigrator) MigrateUp(_ context.Context, schema string) error {
	f.migrated = append(f.migrated, schema)
	return nil
}

// memMover simulates tenant rows in the shared partition and row sets in
// dedicated partitions, with upsert-copy and idempotent-delete semantics
// matching the SQL primitives.
type memMover struct {
	shared     map[string][]string        // tenant key -> row ids
	dedicated  map[string]map[string]bool // partition -> row id set
	failCopy   bool
	failDelete bool
}

func newMemMover() *memMover {
	return &memMover{
		shared:    make(map[string][]string),
		dedicated: make(map[string]map[string]bool),
	}
}

func (m *memMover) seedShared(tenantKey string, rows ...string) {
	m.shared[tenantKey] = append(m.shared[tenantKey], rows...)
}

func (m *memMover) CopyTenantRows(_ context.Context, src, dst, tenantKey string) (int64, error) {
	if m.failCopy {
		return 0, &tenant.CopyError{TenantKey: tenantKey, Table: "projects", Err: errors.New("copy blew up")}
	}
	if m.dedicated[dst] == nil {
		m.dedicated[dst] = make(map[string]bool)
	}
	var copied int64
	for _, id := range m.shared[tenantKey] {
		if !m.dedicated[dst][id] {
			m.dedicated[dst][id] = true
			copied++
		}
	}
	return copied, nil
}

func (m *memMover) DeleteTenantRows(_ context.Context, _, tenantKey string) (int64, error) {
	if m.failDelete {
		return 0, &tenant.CleanupError{TenantKey: tenantKey, Table: "projects", Err: errors.New("delete blew up")}
	}
	n := int64(len(m.shared[tenantKey]))
	delete(m.shared, tenantKey)
	return n, nil
}

type fixture struct {
	reg     *registry.MemoryRegistry
	records *registry.MemoryRecords
	mover   *memMover
	up      *upgrade.Upgrader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:     registry.NewMemoryRegistry(),
		records: registry.NewMemoryRecords(),
		mover:   newMemMover(),
	}
	prov := provision.New(f.reg, f.records, &fakeSchemas{}, &fakeMigrator{})
	f.up = upgrade.New(f.reg, f.records, prov, f.mover)
	return f
}

// provisionBasic signs up a tenant on BASIC and provisions it to shared.
func (f *fixture) provisionBasic(t *testing.T, key string) {
	t.Helper()
	c := qt.New(t)
	ctx := context.Background()
	_, err := f.records.Create(ctx, tenant.Record{Key: key, Tier: tenant.TierBasic})
	c.Assert(err, qt.IsNil)
	_, err = f.reg.CreateMapping(ctx, key, tenant.SharedPartition)
	c.Assert(err, qt.IsNil)
	c.Assert(f.records.SetState(ctx, key, tenant.ProvisioningCompleted), qt.IsNil)
}

func TestUpgrade_FullScenario(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.provisionBasic(t, "acme")
	f.mover.seedShared("acme", "row-1", "row-2", "row-3")
	f.mover.seedShared("globex", "other-1") // another tenant's rows stay put

	// Plan changes to PREMIUM, then the webhook invokes the upgrade.
	c.Assert(f.records.SetPlan(ctx, "acme", "plan-premium", tenant.TierPremium), qt.IsNil)

	outcome, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(outcome.Status, qt.Equals, upgrade.StatusUpgraded)
	c.Assert(outcome.RowsCopied, qt.Equals, int64(3))
	c.Assert(outcome.RowsDeleted, qt.Equals, int64(3))

	expected, err := schemaid.Generate("acme")
	c.Assert(err, qt.IsNil)
	c.Assert(outcome.Partition, qt.Equals, expected)

	// Routing flipped, no rows lost, shared partition cleaned.
	name, err := f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, expected)
	c.Assert(f.mover.dedicated[expected], qt.HasLen, 3)
	c.Assert(f.mover.shared["acme"], qt.HasLen, 0)

	// Isolation: the other tenant's shared rows are untouched.
	c.Assert(f.mover.shared["globex"], qt.DeepEquals, []string{"other-1"})

	// A second call is a converging no-op.
	again, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(again.Status, qt.Equals, upgrade.StatusAlreadyUpgraded)
	c.Assert(again.RowsCopied, qt.Equals, int64(0))
	c.Assert(again.Partition, qt.Equals, expected)
}

func TestUpgrade_NotEligible(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.provisionBasic(t, "acme")
	f.mover.seedShared("acme", "row-1")

	_, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.ErrorIs, tenant.ErrNotEligible)

	// Nothing moved, routing unchanged.
	name, err := f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, tenant.SharedPartition)
	c.Assert(f.mover.shared["acme"], qt.HasLen, 1)
}

func TestUpgrade_UnknownTenant(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t)

	_, err := f.up.Upgrade(context.Background(), "ghost")
	c.Assert(err, qt.ErrorIs, tenant.ErrNotFound)
}

func TestUpgrade_CopyFailureLeavesRoutingUntouched(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.provisionBasic(t, "acme")
	f.mover.seedShared("acme", "row-1", "row-2")
	c.Assert(f.records.SetPlan(ctx, "acme", "plan-premium", tenant.TierPremium), qt.IsNil)

	f.mover.failCopy = true
	_, err := f.up.Upgrade(ctx, "acme")
	var copyErr *tenant.CopyError
	c.Assert(errors.As(err, &copyErr), qt.IsTrue)

	// Failure before the repoint: nothing externally visible changed.
	name, err := f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, tenant.SharedPartition)
	c.Assert(f.mover.shared["acme"], qt.HasLen, 2)

	// Retry from scratch converges.
	f.mover.failCopy = false
	outcome, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(outcome.Status, qt.Equals, upgrade.StatusUpgraded)
	c.Assert(outcome.RowsCopied, qt.Equals, int64(2))
}

func TestUpgrade_CrashBetweenRepointAndCleanupConverges(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(t)

	f.provisionBasic(t, "acme")
	f.mover.seedShared("acme", "row-1", "row-2", "row-3")
	c.Assert(f.records.SetPlan(ctx, "acme", "plan-premium", tenant.TierPremium), qt.IsNil)

	// First attempt crashes after the repoint, before the cleanup.
	f.mover.failDelete = true
	_, err := f.up.Upgrade(ctx, "acme")
	var cleanupErr *tenant.CleanupError
	c.Assert(errors.As(err, &cleanupErr), qt.IsTrue)

	expected, err := schemaid.Generate("acme")
	c.Assert(err, qt.IsNil)

	// Routing already flipped; the shared rows linger as harmless duplicates.
	name, err := f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, expected)
	c.Assert(f.mover.shared["acme"], qt.HasLen, 3)

	// Re-invoking converges to the same end state as an uninterrupted run:
	// no duplicates in the dedicated partition, shared partition clean.
	f.mover.failDelete = false
	outcome, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(outcome.Status, qt.Equals, upgrade.StatusAlreadyUpgraded)
	c.Assert(outcome.RowsCopied, qt.Equals, int64(0))
	c.Assert(outcome.RowsDeleted, qt.Equals, int64(3))
	c.Assert(f.mover.dedicated[expected], qt.HasLen, 3)
	c.Assert(f.mover.shared["acme"], qt.HasLen, 0)

	name, err = f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, expected)
}

func TestUpgrade_NeverProvisionedPremiumTenant(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Signed up PREMIUM but provisioning never ran: no mapping exists.
	_, err := f.records.Create(ctx, tenant.Record{Key: "acme", Tier: tenant.TierPremium})
	c.Assert(err, qt.IsNil)

	outcome, err := f.up.Upgrade(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(outcome.Status, qt.Equals, upgrade.StatusUpgraded)

	expected, err := schemaid.Generate("acme")
	c.Assert(err, qt.IsNil)
	name, err := f.reg.Lookup(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, expected)

	rec, err := f.records.Get(ctx, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(rec.State, qt.Equals, tenant.ProvisioningCompleted)
}
