// Package status implements the "tenancy status" command.
package status

import (
	"errors"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/tenancy/cmd/bootstrap"
	"github.com/stokaro/tenancy/tenant"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tenant routing and provisioning state",
	Long: `Show where tenants live and how far along their provisioning is.

Without flags every tenant record is listed with its current partition. With
--tenant a single tenant is shown in detail, including its partition's schema
version and the number of rows it owns.

Examples:
  tenancy status
  tenancy status --tenant acme`,
	RunE: statusCommand,
}

const tenantFlag = "tenant"

var statusFlags = map[string]cobraflags.Flag{
	tenantFlag: &cobraflags.StringFlag{
		Name:  tenantFlag,
		Value: "",
		Usage: "Show detailed status for this tenant only",
	},
}

func NewStatusCommand() *cobra.Command {
	cobraflags.RegisterMap(statusCmd, statusFlags)
	cobraflags.RegisterMap(statusCmd, bootstrap.Flags)
	return statusCmd
}

func statusCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := bootstrap.Open(ctx, bootstrap.Flags[bootstrap.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	defer app.Close()

	if key := statusFlags[tenantFlag].GetString(); key != "" {
		return tenantStatus(cmd, app, key)
	}
	return listStatus(cmd, app)
}

func tenantStatus(cmd *cobra.Command, app *bootstrap.App, key string) error {
	ctx := cmd.Context()

	rec, err := app.Records.Get(ctx, key)
	if err != nil {
		return err
	}

	part, err := app.Registry.Lookup(ctx, key)
	if errors.Is(err, tenant.ErrNotFound) {
		part = "(not provisioned)"
	} else if err != nil {
		return err
	}

	fmt.Printf("Tenant:    %s\n", rec.Key)
	fmt.Printf("Name:      %s\n", rec.DisplayName)
	fmt.Printf("Tier:      %s\n", rec.Tier)
	fmt.Printf("State:     %s\n", rec.State)
	fmt.Printf("Plan:      %s\n", rec.PlanID)
	fmt.Printf("Partition: %s\n", part)

	if part == "(not provisioned)" {
		return nil
	}

	version, err := app.Migrator.CurrentVersion(ctx, part)
	if err != nil {
		return err
	}
	rows, err := app.Mover.CountTenantRows(ctx, part, key)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d\n", version)
	fmt.Printf("Rows owned:     %d\n", rows)
	return nil
}

func listStatus(cmd *cobra.Command, app *bootstrap.App) error {
	ctx := cmd.Context()

	records, err := app.Records.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No tenants registered")
		return nil
	}

	for _, rec := range records {
		part, err := app.Registry.Lookup(ctx, rec.Key)
		if errors.Is(err, tenant.ErrNotFound) {
			part = "(not provisioned)"
		} else if err != nil {
			return err
		}
		fmt.Printf("%-30s %-10s %-10s %s\n", rec.Key, rec.Tier, rec.State, part)
	}
	return nil
}
