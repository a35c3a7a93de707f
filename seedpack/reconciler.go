package seedpack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stokaro/tenancy/metrics"
	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/tenant"
)

// defaultWorkers bounds the concurrent per-tenant reconciliations of one
// sweep.
const defaultWorkers = 4

// Reconciler (re)applies the published pack set to tenants. Invoked at
// provisioning time for a single tenant and periodically as a self-healing
// sweep across all tenants.
type Reconciler struct {
	reg     registry.Registry
	records registry.Records
	ledger  Ledger
	q       partition.Querier
	packs   []Pack
	workers int
	logger  *slog.Logger
}

// NewReconciler creates a reconciler over the given pack set.
func NewReconciler(reg registry.Registry, records registry.Records, ledger Ledger, q partition.Querier, packs []Pack) *Reconciler {
	return &Reconciler{
		reg:     reg,
		records: records,
		ledger:  ledger,
		q:       q,
		packs:   packs,
		workers: defaultWorkers,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the reconciler.
func (r *Reconciler) WithLogger(l *slog.Logger) *Reconciler {
	tmp := *r
	tmp.logger = l
	return &tmp
}

// WithWorkers sets the per-sweep concurrency bound.
func (r *Reconciler) WithWorkers(n int) *Reconciler {
	tmp := *r
	if n > 0 {
		tmp.workers = n
	}
	return &tmp
}

// Run sweeps all tenants, or only the given keys when filter is non-empty.
// A single tenant's failure is logged and does not block the others; Run
// returns an error only when the tenant listing itself fails or the context
// is cancelled.
func (r *Reconciler) Run(ctx context.Context, filter ...string) error {
	records, err := r.records.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	keep := make(map[string]bool, len(filter))
	for _, key := range filter {
		keep[key] = true
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, rec := range records {
		if len(keep) > 0 && !keep[rec.Key] {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.ReconcileTenant(ctx, rec.Key); err != nil {
				r.logger.Error("Seed reconciliation failed for tenant", "tenant", rec.Key, "error", err)
				metrics.ReconcileFailures.Inc()
			}
			return nil
		})
	}

	return g.Wait()
}

// ReconcileTenant compares the published pack set against the tenant's
// ledger and applies whatever is missing or stale. Each iteration binds a
// fresh tenant context so pack SQL routes to the tenant's current partition.
// Tenants without a partition mapping are skipped; provisioning seeds them
// once the mapping exists.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantKey string) error {
	part, err := r.reg.Lookup(ctx, tenantKey)
	if errors.Is(err, tenant.ErrNotFound) {
		r.logger.Debug("Skipping unprovisioned tenant", "tenant", tenantKey)
		return nil
	}
	if err != nil {
		return err
	}

	ctx = tenant.Bind(ctx, tenant.Context{Partition: part, OrgID: tenantKey})

	for _, pack := range r.packs {
		applied, err := r.ledger.AppliedVersion(ctx, tenantKey, pack.ID)
		if err != nil {
			return err
		}
		if applied >= pack.Version {
			continue
		}

		r.logger.Info("Applying seed pack", "tenant", tenantKey, "pack", pack.ID, "version", pack.Version, "appliedVersion", applied)
		if err := pack.Apply(ctx, r.q); err != nil {
			return fmt.Errorf("failed to apply pack %q to %q: %w", pack.ID, tenantKey, err)
		}
		if err := r.ledger.RecordApplication(ctx, tenantKey, pack.ID, pack.Version); err != nil {
			return err
		}
		metrics.SeedPacksApplied.WithLabelValues(pack.ID).Inc()
	}
	return nil
}
