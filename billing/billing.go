// Package billing consumes the provisioning and tier-change notifications the
// external billing/identity webhook delivers, translating provider plan
// references into tiers and invoking the provisioning and upgrade flows.
// Webhooks are delivered at least once; every handler here is safe to replay.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stokaro/tenancy/provision"
	"github.com/stokaro/tenancy/registry"
	"github.com/stokaro/tenancy/tenant"
	"github.com/stokaro/tenancy/upgrade"
)

// PlanMapping maps provider-specific plan references to tiers.
type PlanMapping map[string]tenant.Tier

// DefaultPlanMapping returns the mapping for the current provider catalog.
func DefaultPlanMapping() PlanMapping {
	return PlanMapping{
		"plan-basic-monthly":   tenant.TierBasic,
		"plan-basic-yearly":    tenant.TierBasic,
		"plan-premium-monthly": tenant.TierPremium,
		"plan-premium-yearly":  tenant.TierPremium,
	}
}

// Resolve returns the tier a plan reference maps to. Unknown plans fail with
// tenant.ErrInvalidInput rather than guessing a tier.
func (m PlanMapping) Resolve(planID string) (tenant.Tier, error) {
	tier, ok := m[planID]
	if !ok {
		return "", fmt.Errorf("%w: unknown plan %q", tenant.ErrInvalidInput, planID)
	}
	return tier, nil
}

// ProvisioningRequest is the signup notification.
type ProvisioningRequest struct {
	TenantKey   string
	DisplayName string
	PlanID      string
}

// TierChange is the subscription-change notification.
type TierChange struct {
	TenantKey string
	PlanID    string
}

// Provisioner is the provisioning entry point the processor invokes.
type Provisioner interface {
	Provision(ctx context.Context, rec tenant.Record) (provision.Outcome, error)
}

// Upgrader is the upgrade entry point the processor invokes.
type Upgrader interface {
	Upgrade(ctx context.Context, tenantKey string) (upgrade.Outcome, error)
}

// Processor turns webhook events into provisioning and upgrade calls.
// Failures surface to the webhook transport, which retries with backoff;
// the idempotent flows underneath make the retries safe.
type Processor struct {
	records registry.Records
	prov    Provisioner
	up      Upgrader
	plans   PlanMapping
	logger  *slog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(records registry.Records, prov Provisioner, up Upgrader, plans PlanMapping) *Processor {
	return &Processor{
		records: records,
		prov:    prov,
		up:      up,
		plans:   plans,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the processor.
func (p *Processor) WithLogger(l *slog.Logger) *Processor {
	tmp := *p
	tmp.logger = l
	return &tmp
}

// HandleSignup creates the tenant record and provisions its partition.
// Replays converge on the existing record and mapping.
func (p *Processor) HandleSignup(ctx context.Context, req ProvisioningRequest) (provision.Outcome, error) {
	tier, err := p.plans.Resolve(req.PlanID)
	if err != nil {
		return provision.Outcome{}, err
	}

	rec, err := p.records.Create(ctx, tenant.Record{
		Key:         req.TenantKey,
		DisplayName: req.DisplayName,
		Tier:        tier,
		PlanID:      req.PlanID,
	})
	if err != nil {
		return provision.Outcome{}, err
	}

	return p.prov.Provision(ctx, rec)
}

// HandleTierChange syncs the plan onto the tenant record, then runs the
// upgrade when the new tier calls for a dedicated partition. The plan sync
// happens first so the upgrade's eligibility check sees the new tier.
//
// A downgrade only updates the plan: moving a tenant back into the shared
// partition is an operator decision, not a webhook side effect.
func (p *Processor) HandleTierChange(ctx context.Context, change TierChange) error {
	tier, err := p.plans.Resolve(change.PlanID)
	if err != nil {
		return err
	}

	if err := p.records.SetPlan(ctx, change.TenantKey, change.PlanID, tier); err != nil {
		return err
	}

	if tier != tenant.TierPremium {
		p.logger.Info("Plan synced, no upgrade required", "tenant", change.TenantKey, "plan", change.PlanID)
		return nil
	}

	outcome, err := p.up.Upgrade(ctx, change.TenantKey)
	if err != nil {
		return err
	}
	p.logger.Info("Tier change processed", "tenant", change.TenantKey, "plan", change.PlanID, "status", outcome.Status)
	return nil
}
