// Package provision materializes storage partitions for tenants. BASIC-tier
// tenants are routed to the reserved shared partition, which exists from
// initial deployment; PREMIUM-tier tenants get a dedicated schema created via
// DDL and brought to the current version by replaying the same ordered
// migration set used at initial deployment.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stokaro/tenancy/metrics"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/schemaid"
	"github.com/stokaro/tenancy/tenant"
)

// SchemaManager creates partition schemas. *partition.DB satisfies it.
type SchemaManager interface {
	CreateSchema(ctx context.Context, name string) error
}

// Migrator brings a partition schema to the current version.
// *migrate.Migrator satisfies it.
type Migrator interface {
	MigrateUp(ctx context.Context, schema string) error
}

// Seeder applies baseline seed packs to a freshly provisioned tenant.
// *seedpack.Reconciler satisfies it.
type Seeder interface {
	ReconcileTenant(ctx context.Context, tenantKey string) error
}

// Status is the outcome classification of a provisioning call.
type Status string

const (
	// StatusProvisioned means the partition was created (or the shared
	// partition assigned) and the mapping recorded by this call.
	StatusProvisioned Status = "provisioned"

	// StatusAlreadyProvisioned means a mapping already existed and the call
	// changed nothing. Not an error; idempotent callers treat it as success.
	StatusAlreadyProvisioned Status = "already_provisioned"
)

// Outcome reports where a tenant ended up after a provisioning call.
type Outcome struct {
	TenantKey string
	Partition string
	Status    Status
}

// Provisioner creates partitions and records the resulting mappings.
type Provisioner struct {
	reg      registry.Registry
	records  registry.Records
	schemas  SchemaManager
	migrator Migrator
	seeder   Seeder
	logger   *slog.Logger
}

// New creates a provisioner.
func New(reg registry.Registry, records registry.Records, schemas SchemaManager, migrator Migrator) *Provisioner {
	return &Provisioner{
		reg:      reg,
		records:  records,
		schemas:  schemas,
		migrator: migrator,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the provisioner.
func (p *Provisioner) WithLogger(l *slog.Logger) *Provisioner {
	tmp := *p
	tmp.logger = l
	return &tmp
}

// WithSeeder sets the seed-pack reconciler invoked after a successful
// provisioning. Seeding failures are logged, not fatal: the periodic
// reconciliation sweep reapplies missing packs.
func (p *Provisioner) WithSeeder(s Seeder) *Provisioner {
	tmp := *p
	tmp.seeder = s
	return &tmp
}

// EnsureShared creates the reserved shared partition and brings it to the
// current schema version. Run at deployment; idempotent.
func (p *Provisioner) EnsureShared(ctx context.Context) error {
	if err := p.schemas.CreateSchema(ctx, tenant.SharedPartition); err != nil {
		return fmt.Errorf("failed to ensure shared partition: %w", err)
	}
	if err := p.migrator.MigrateUp(ctx, tenant.SharedPartition); err != nil {
		return fmt.Errorf("failed to migrate shared partition: %w", err)
	}
	return nil
}

// Provision materializes the partition the tenant's tier calls for and
// records the mapping. Idempotent: when a mapping already exists the call
// short-circuits with StatusAlreadyProvisioned and touches nothing.
//
// A DDL or migration failure during dedicated-partition creation leaves the
// tenant record FAILED, creates no mapping (a retry is recognized as "not yet
// provisioned"), and surfaces the storage error wrapped in a
// *tenant.ProvisioningError.
func (p *Provisioner) Provision(ctx context.Context, rec tenant.Record) (Outcome, error) {
	if err := tenant.ValidateKey(rec.Key); err != nil {
		return Outcome{}, err
	}
	if !rec.Tier.Valid() {
		return Outcome{}, fmt.Errorf("%w: unknown tier %q", tenant.ErrInvalidInput, rec.Tier)
	}

	existing, err := p.reg.Lookup(ctx, rec.Key)
	if err == nil {
		p.logger.Info("Tenant already provisioned", "tenant", rec.Key, "partition", existing)
		metrics.ProvisionsTotal.WithLabelValues(string(rec.Tier), string(StatusAlreadyProvisioned)).Inc()
		return Outcome{TenantKey: rec.Key, Partition: existing, Status: StatusAlreadyProvisioned}, nil
	}
	if !errors.Is(err, tenant.ErrNotFound) {
		return Outcome{}, fmt.Errorf("failed to check existing mapping: %w", err)
	}

	target := tenant.SharedPartition
	if rec.Tier == tenant.TierPremium {
		target, err = p.MaterializeDedicated(ctx, rec)
		if err != nil {
			metrics.ProvisionsTotal.WithLabelValues(string(rec.Tier), "failed").Inc()
			return Outcome{}, err
		}
	}

	// The conditional insert is the convergence point for concurrent
	// provisioning attempts: whoever loses the race adopts the winner's
	// partition.
	mapped, err := p.reg.CreateMapping(ctx, rec.Key, target)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create mapping for %q: %w", rec.Key, err)
	}

	if err := p.records.SetState(ctx, rec.Key, tenant.ProvisioningCompleted); err != nil {
		return Outcome{}, fmt.Errorf("failed to mark %q completed: %w", rec.Key, err)
	}

	p.seed(ctx, rec.Key)

	p.logger.Info("Provisioned tenant", "tenant", rec.Key, "tier", rec.Tier, "partition", mapped)
	metrics.ProvisionsTotal.WithLabelValues(string(rec.Tier), string(StatusProvisioned)).Inc()
	return Outcome{TenantKey: rec.Key, Partition: mapped, Status: StatusProvisioned}, nil
}

// MaterializeDedicated creates the tenant's dedicated schema and brings it to
// the current version, without touching the registry. The upgrader uses it
// directly, since at upgrade time a mapping to the shared partition already
// exists and Provision would short-circuit.
//
// The schema name is derived from the tenant key exactly here, once;
// everything after first creation reads the name back from the registry.
// Idempotent: schema creation and migration both skip work already done.
func (p *Provisioner) MaterializeDedicated(ctx context.Context, rec tenant.Record) (string, error) {
	name, err := schemaid.Generate(rec.Key)
	if err != nil {
		return "", err
	}

	if err := p.schemas.CreateSchema(ctx, name); err != nil {
		return "", p.fail(ctx, rec.Key, name, err)
	}
	if err := p.migrator.MigrateUp(ctx, name); err != nil {
		return "", p.fail(ctx, rec.Key, name, err)
	}
	return name, nil
}

func (p *Provisioner) fail(ctx context.Context, tenantKey, part string, cause error) error {
	p.logger.Error("Provisioning failed", "tenant", tenantKey, "partition", part, "error", cause)
	if err := p.records.SetState(ctx, tenantKey, tenant.ProvisioningFailed); err != nil {
		p.logger.Error("Failed to mark tenant record FAILED", "tenant", tenantKey, "error", err)
	}
	return &tenant.ProvisioningError{TenantKey: tenantKey, Partition: part, Err: cause}
}

func (p *Provisioner) seed(ctx context.Context, tenantKey string) {
	if p.seeder == nil {
		return
	}
	if err := p.seeder.ReconcileTenant(ctx, tenantKey); err != nil {
		p.logger.Error("Seeding failed, sweep will retry", "tenant", tenantKey, "error", err)
	}
}
