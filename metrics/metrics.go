// Package metrics exposes the tenancy subsystem's counters on the default
// Prometheus registerer. Every counter is labelled by outcome so operators
// can alert on failure rates without log scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProvisionsTotal counts partition provisioning attempts by tier and
	// outcome (provisioned, already_provisioned, failed).
	ProvisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenancy_provisions_total",
		Help: "Partition provisioning attempts by tier and outcome.",
	}, []string{"tier", "outcome"})

	// UpgradesTotal counts tenant upgrade attempts by outcome (upgraded,
	// already_upgraded, not_eligible, failed).
	UpgradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenancy_upgrades_total",
		Help: "Tenant tier-upgrade attempts by outcome.",
	}, []string{"outcome"})

	// UpgradeRowsCopied counts rows copied from the shared partition into
	// dedicated partitions.
	UpgradeRowsCopied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenancy_upgrade_rows_copied_total",
		Help: "Rows copied from the shared partition into dedicated partitions.",
	})

	// SeedPacksApplied counts seed pack applications by pack id.
	SeedPacksApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenancy_seed_packs_applied_total",
		Help: "Seed pack applications by pack id.",
	}, []string{"pack"})

	// ReconcileFailures counts per-tenant reconciler failures.
	ReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenancy_reconcile_failures_total",
		Help: "Per-tenant seed reconciliation failures.",
	})
)
