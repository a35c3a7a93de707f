// Package upgrade moves a tenant's rows from the shared partition into a
// dedicated partition when its subscription tier changes to PREMIUM.
//
// The migration is online and lock-free from other tenants' point of view:
// only the target tenant's rows are ever touched. The registry repoint is the
// single atomicity boundary — before it every request routes to the shared
// partition, after it to the dedicated one — and every step before and after
// the repoint is idempotent, so the only recovery path ever needed is
// "call Upgrade again".
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stokaro/tenancy/metrics"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/tenant"
)

// Provisioner materializes a tenant's dedicated partition.
// *provision.Provisioner satisfies it.
type Provisioner interface {
	MaterializeDedicated(ctx context.Context, rec tenant.Record) (string, error)
}

// Mover is the row-movement primitive pair the upgrade consumes.
// *partition.Mover satisfies it.
type Mover interface {
	CopyTenantRows(ctx context.Context, src, dst, tenantKey string) (int64, error)
	DeleteTenantRows(ctx context.Context, partition, tenantKey string) (int64, error)
}

// Status classifies the outcome of an upgrade call.
type Status string

const (
	// StatusUpgraded means this call performed the repoint.
	StatusUpgraded Status = "upgraded"

	// StatusAlreadyUpgraded means routing already targeted a dedicated
	// partition. The call still reconciles leftover shared rows, so a retry
	// after a crash between repoint and cleanup converges.
	StatusAlreadyUpgraded Status = "already_upgraded"
)

// Outcome reports what an upgrade call did.
type Outcome struct {
	TenantKey   string
	Partition   string
	Status      Status
	RowsCopied  int64
	RowsDeleted int64
}

// Upgrader orchestrates the online shared→dedicated migration.
type Upgrader struct {
	reg     registry.Registry
	records registry.Records
	prov    Provisioner
	mover   Mover
	logger  *slog.Logger
}

// New creates an upgrader.
func New(reg registry.Registry, records registry.Records, prov Provisioner, mover Mover) *Upgrader {
	return &Upgrader{
		reg:     reg,
		records: records,
		prov:    prov,
		mover:   mover,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the upgrader.
func (u *Upgrader) WithLogger(l *slog.Logger) *Upgrader {
	tmp := *u
	tmp.logger = l
	return &tmp
}

// Upgrade migrates one tenant into its dedicated partition:
//
//  1. Short-circuit check: if routing already targets a dedicated partition,
//     skip provisioning and only reconcile (steps 3 and 5).
//  2. Materialize the dedicated partition at the current schema version.
//  3. Copy the tenant's rows from the shared partition, upsert-style, with
//     the discriminator value stripped.
//  4. Repoint the registry. The commit point: all routing flips here.
//  5. Delete the tenant's rows from the shared partition, scoped strictly by
//     the discriminator.
//
// The cleanup runs strictly after the repoint: a crash between an early
// delete and the repoint would lose data, while a crash between repoint and
// cleanup merely leaves duplicate shared rows that the next call removes.
//
// Precondition: the tenant record's tier is already PREMIUM. The tier flag is
// the trigger, not this method's job to set; anything else fails with
// tenant.ErrNotEligible so a webhook racing ahead of plan sync does nothing.
func (u *Upgrader) Upgrade(ctx context.Context, tenantKey string) (Outcome, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return Outcome{}, err
	}

	rec, err := u.records.Get(ctx, tenantKey)
	if err != nil {
		return Outcome{}, err
	}
	if rec.Tier != tenant.TierPremium {
		metrics.UpgradesTotal.WithLabelValues("not_eligible").Inc()
		return Outcome{}, fmt.Errorf("%w: tenant %q is on tier %s", tenant.ErrNotEligible, tenantKey, rec.Tier)
	}

	current, err := u.reg.Lookup(ctx, tenantKey)
	hasMapping := err == nil
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return Outcome{}, fmt.Errorf("failed to resolve current partition: %w", err)
	}

	// The registry is authoritative for the partition name. Only when no
	// dedicated partition exists yet is the name (re)derived, inside
	// MaterializeDedicated, from the tenant key.
	alreadyDedicated := hasMapping && !tenant.IsShared(current)

	var dst string
	if alreadyDedicated {
		dst = current
	} else {
		dst, err = u.prov.MaterializeDedicated(ctx, rec)
		if err != nil {
			metrics.UpgradesTotal.WithLabelValues("failed").Inc()
			return Outcome{}, err
		}
	}

	copied, err := u.mover.CopyTenantRows(ctx, tenant.SharedPartition, dst, tenantKey)
	if err != nil {
		metrics.UpgradesTotal.WithLabelValues("failed").Inc()
		return Outcome{}, err
	}

	if !alreadyDedicated {
		if err := u.repoint(ctx, tenantKey, dst, hasMapping); err != nil {
			metrics.UpgradesTotal.WithLabelValues("failed").Inc()
			return Outcome{}, err
		}
		u.logger.Info("Repointed tenant to dedicated partition", "tenant", tenantKey, "partition", dst)
	}

	deleted, err := u.mover.DeleteTenantRows(ctx, tenant.SharedPartition, tenantKey)
	if err != nil {
		// Routing already flipped; the leftover shared rows are harmless
		// duplicates and the next Upgrade call removes them.
		metrics.UpgradesTotal.WithLabelValues("failed").Inc()
		return Outcome{}, err
	}

	status := StatusUpgraded
	if alreadyDedicated {
		status = StatusAlreadyUpgraded
	}

	metrics.UpgradesTotal.WithLabelValues(string(status)).Inc()
	metrics.UpgradeRowsCopied.Add(float64(copied))

	u.logger.Info("Upgrade complete",
		"tenant", tenantKey, "partition", dst, "status", status,
		"rowsCopied", copied, "rowsDeleted", deleted)

	return Outcome{
		TenantKey:   tenantKey,
		Partition:   dst,
		Status:      status,
		RowsCopied:  copied,
		RowsDeleted: deleted,
	}, nil
}

// repoint flips routing to the dedicated partition. A tenant that was never
// provisioned has no mapping row to update; the conditional insert covers
// that path, and losing a race against a concurrent shared-partition
// provisioning still converges on the dedicated partition.
func (u *Upgrader) repoint(ctx context.Context, tenantKey, dst string, hasMapping bool) error {
	if hasMapping {
		if err := u.reg.Repoint(ctx, tenantKey, dst); err != nil {
			return fmt.Errorf("failed to repoint %q: %w", tenantKey, err)
		}
		return nil
	}

	mapped, err := u.reg.CreateMapping(ctx, tenantKey, dst)
	if err != nil {
		return fmt.Errorf("failed to create mapping for %q: %w", tenantKey, err)
	}
	if mapped != dst {
		if err := u.reg.Repoint(ctx, tenantKey, dst); err != nil {
			return fmt.Errorf("failed to repoint %q after losing create race: %w", tenantKey, err)
		}
	}
	return u.records.SetState(ctx, tenantKey, tenant.ProvisioningCompleted)
}
