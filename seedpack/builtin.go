package seedpack

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/tenant"
)

// starterTemplates is the default project-template catalog every tenant
// starts with.
var starterTemplates = []struct {
	name string
	body string
}{
	{name: "Fixed-fee engagement", body: "Kickoff, delivery, acceptance, invoicing."},
	{name: "Retainer", body: "Monthly scope review and rolling invoicing."},
	{name: "Time & materials", body: "Weekly timesheet approval and monthly invoicing."},
}

// templateID derives a stable per-tenant UUID for a seeded template. Stable
// ids are what make the insert an idempotent upsert, and the tenant key in
// the name keeps ids distinct across tenants sharing one partition.
func templateID(tenantKey, name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("seedpack/starter-templates/"+tenantKey+"/"+name))
}

// StarterTemplates returns the built-in starter template pack. Bump the
// version when the catalog changes; the reconciler reapplies it everywhere on
// its next sweep.
func StarterTemplates() Pack {
	return Pack{
		ID:      "starter-templates",
		Version: 1,
		Apply:   applyStarterTemplates,
	}
}

func applyStarterTemplates(ctx context.Context, q partition.Querier) error {
	tc, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	sql := "INSERT INTO " + partition.Qualify(tc.Partition, "project_templates") +
		" (id, name, body, " + partition.Discriminator + ") VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING"

	// Rows in a dedicated partition carry no discriminator value.
	var discriminator any
	if tenant.IsShared(tc.Partition) {
		discriminator = tc.OrgID
	}

	for _, tpl := range starterTemplates {
		id := templateID(tc.OrgID, tpl.name)
		if _, err := q.Exec(ctx, sql, id, tpl.name, tpl.body, discriminator); err != nil {
			return fmt.Errorf("failed to seed template %q: %w", tpl.name, err)
		}
	}
	return nil
}

// Builtin returns all packs shipped with the system.
func Builtin() []Pack {
	return []Pack{StarterTemplates()}
}
