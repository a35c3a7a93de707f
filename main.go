package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stokaro/tenancy/cmd/provision"
	"github.com/stokaro/tenancy/cmd/reconcile"
	"github.com/stokaro/tenancy/cmd/status"
	"github.com/stokaro/tenancy/cmd/upgrade"
)

var rootCmd = &cobra.Command{
	Use:   "tenancy",
	Short: "Tenant partition provisioning and lifecycle tooling",
	Long: `tenancy manages storage partitions for a multi-tenant deployment:
provisioning tenants into the shared or a dedicated partition, migrating
tenants between partitions on tier changes, and reconciling baseline seed
data across all tenants.

Configuration comes from TENANCY_* environment variables or a YAML file
passed via --config.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(provision.NewProvisionCommand())
	rootCmd.AddCommand(upgrade.NewUpgradeCommand())
	rootCmd.AddCommand(reconcile.NewReconcileCommand())
	rootCmd.AddCommand(status.NewStatusCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
