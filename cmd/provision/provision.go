// Package provision implements the "tenancy provision" command.
package provision

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/tenancy/billing"
	"github.com/stokaro/tenancy/cmd/bootstrap"
	"github.com/stokaro/tenancy/tenant"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a storage partition for a tenant",
	Long: `Provision a storage partition for a tenant.

BASIC-tier tenants are routed to the shared partition; PREMIUM-tier tenants
get a dedicated schema created and migrated to the current version. The
command is idempotent: provisioning an already-provisioned tenant reports
the existing partition and changes nothing.

Examples:
  tenancy provision --tenant acme --display-name "Acme Corp" --plan plan-basic-monthly
  tenancy provision --tenant globex --plan plan-premium-yearly
  tenancy provision shared`,
	RunE: provisionCommand,
}

const (
	tenantFlag      = "tenant"
	displayNameFlag = "display-name"
	planFlag        = "plan"
)

var provisionFlags = map[string]cobraflags.Flag{
	tenantFlag: &cobraflags.StringFlag{
		Name:  tenantFlag,
		Value: "",
		Usage: "Tenant key to provision (required)",
	},
	displayNameFlag: &cobraflags.StringFlag{
		Name:  displayNameFlag,
		Value: "",
		Usage: "Human-readable tenant name",
	},
	planFlag: &cobraflags.StringFlag{
		Name:  planFlag,
		Value: "plan-basic-monthly",
		Usage: "Billing plan reference deciding the tier",
	},
}

func NewProvisionCommand() *cobra.Command {
	cobraflags.RegisterMap(provisionCmd, provisionFlags)
	cobraflags.RegisterMap(provisionCmd, bootstrap.Flags)
	provisionCmd.AddCommand(newSharedCommand())
	return provisionCmd
}

// newSharedCommand creates the "provision shared" subcommand run at
// deployment time.
func newSharedCommand() *cobra.Command {
	sharedCmd := &cobra.Command{
		Use:   "shared",
		Short: "Create the shared partition and migrate it to the current version",
		Long: `Create the reserved shared partition and bring it to the current schema
version. Run once at deployment and again after shipping new migrations;
idempotent either way.`,
		RunE: sharedCommand,
	}
	cobraflags.RegisterMap(sharedCmd, bootstrap.Flags)
	return sharedCmd
}

func provisionCommand(cmd *cobra.Command, _ []string) error {
	tenantKey := provisionFlags[tenantFlag].GetString()
	if tenantKey == "" {
		return fmt.Errorf("tenant key is required (use --tenant flag)")
	}

	ctx := cmd.Context()
	app, err := bootstrap.Open(ctx, bootstrap.Flags[bootstrap.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	defer app.Close()

	processor := billing.NewProcessor(app.Records, app.Provisioner, app.Upgrader, billing.DefaultPlanMapping()).
		WithLogger(app.Logger)

	outcome, err := processor.HandleSignup(ctx, billing.ProvisioningRequest{
		TenantKey:   tenantKey,
		DisplayName: provisionFlags[displayNameFlag].GetString(),
		PlanID:      provisionFlags[planFlag].GetString(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:    %s\n", outcome.TenantKey)
	fmt.Printf("Partition: %s\n", outcome.Partition)
	fmt.Printf("Status:    %s\n", outcome.Status)
	return nil
}

func sharedCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := bootstrap.Open(ctx, bootstrap.Flags[bootstrap.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Provisioner.EnsureShared(ctx); err != nil {
		return err
	}

	version, err := app.Migrator.CurrentVersion(ctx, tenant.SharedPartition)
	if err != nil {
		return err
	}
	fmt.Printf("Shared partition ready at version %d\n", version)
	return nil
}
