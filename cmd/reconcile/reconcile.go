// Package reconcile implements the "tenancy reconcile" command.
package reconcile

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/tenancy/cmd/bootstrap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply missing seed packs across tenants",
	Long: `Compare the published seed-pack set against every tenant's application
ledger and apply whatever is missing or stale, routed through each tenant's
current partition.

Run periodically as the self-healing sweep, or with --tenant to reconcile a
single tenant after a support intervention.

Examples:
  tenancy reconcile
  tenancy reconcile --tenant acme`,
	RunE: reconcileCommand,
}

const tenantFlag = "tenant"

var reconcileFlags = map[string]cobraflags.Flag{
	tenantFlag: &cobraflags.StringFlag{
		Name:  tenantFlag,
		Value: "",
		Usage: "Reconcile only this tenant instead of sweeping all",
	},
}

func NewReconcileCommand() *cobra.Command {
	cobraflags.RegisterMap(reconcileCmd, reconcileFlags)
	cobraflags.RegisterMap(reconcileCmd, bootstrap.Flags)
	return reconcileCmd
}

func reconcileCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := bootstrap.Open(ctx, bootstrap.Flags[bootstrap.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	defer app.Close()

	var filter []string
	if key := reconcileFlags[tenantFlag].GetString(); key != "" {
		filter = append(filter, key)
	}

	if err := app.Reconciler.Run(ctx, filter...); err != nil {
		return err
	}

	fmt.Println("Reconciliation sweep complete")
	return nil
}
