// Package upgrade implements the "tenancy upgrade" command.
package upgrade

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/tenancy/billing"
	"github.com/stokaro/tenancy/cmd/bootstrap"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Move a tenant from the shared partition into a dedicated one",
	Long: `Move a tenant's rows from the shared partition into a dedicated partition.

The tenant record's tier must already be PREMIUM; pass --plan to sync the
billing plan (and tier) first, the way the billing webhook does. The
migration is online: routing flips atomically once the rows are copied, and
the command is safe to re-run after any failure.

Examples:
  tenancy upgrade --tenant acme
  tenancy upgrade --tenant acme --plan plan-premium-monthly`,
	RunE: upgradeCommand,
}

const (
	tenantFlag = "tenant"
	planFlag   = "plan"
)

var upgradeFlags = map[string]cobraflags.Flag{
	tenantFlag: &cobraflags.StringFlag{
		Name:  tenantFlag,
		Value: "",
		Usage: "Tenant key to upgrade (required)",
	},
	planFlag: &cobraflags.StringFlag{
		Name:  planFlag,
		Value: "",
		Usage: "Billing plan reference to sync before upgrading (optional)",
	},
}

func NewUpgradeCommand() *cobra.Command {
	cobraflags.RegisterMap(upgradeCmd, upgradeFlags)
	cobraflags.RegisterMap(upgradeCmd, bootstrap.Flags)
	return upgradeCmd
}

func upgradeCommand(cmd *cobra.Command, _ []string) error {
	tenantKey := upgradeFlags[tenantFlag].GetString()
	if tenantKey == "" {
		return fmt.Errorf("tenant key is required (use --tenant flag)")
	}

	ctx := cmd.Context()
	app, err := bootstrap.Open(ctx, bootstrap.Flags[bootstrap.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	defer app.Close()

	if plan := upgradeFlags[planFlag].GetString(); plan != "" {
		processor := billing.NewProcessor(app.Records, app.Provisioner, app.Upgrader, billing.DefaultPlanMapping()).
			WithLogger(app.Logger)
		return processor.HandleTierChange(ctx, billing.TierChange{TenantKey: tenantKey, PlanID: plan})
	}

	outcome, err := app.Upgrader.Upgrade(ctx, tenantKey)
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:       %s\n", outcome.TenantKey)
	fmt.Printf("Partition:    %s\n", outcome.Partition)
	fmt.Printf("Status:       %s\n", outcome.Status)
	fmt.Printf("Rows copied:  %d\n", outcome.RowsCopied)
	fmt.Printf("Rows deleted: %d\n", outcome.RowsDeleted)
	return nil
}
