// Package migrations embeds the baseline structural migration set every
// partition is brought up with, and declares the matching tenant-scoped table
// descriptors used by the bulk copy/delete primitives. The SQL files and the
// descriptors must stay in lockstep: a table added here must appear in both.
package migrations

import (
	"embed"

	"github.com/stokaro/tenancy/partition"
)

//go:embed *.sql
var FS embed.FS

// Tables returns the descriptors of every tenant-scoped table created by the
// baseline migrations. The column lists exclude the discriminator, which the
// copy primitive handles itself.
func Tables() []partition.Table {
	return []partition.Table{
		{
			Name:     "customers",
			Columns:  []string{"id", "name", "email", "created_at"},
			Conflict: []string{"id"},
		},
		{
			Name:     "projects",
			Columns:  []string{"id", "customer_id", "name", "status", "created_at"},
			Conflict: []string{"id"},
		},
		{
			Name:     "invoices",
			Columns:  []string{"id", "project_id", "number", "amount_cents", "issued_on", "created_at"},
			Conflict: []string{"id"},
		},
		{
			Name:     "project_templates",
			Columns:  []string{"id", "name", "body", "created_at"},
			Conflict: []string{"id"},
		},
	}
}
