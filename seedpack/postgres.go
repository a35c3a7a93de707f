package seedpack

import (
	"context"
	"fmt"

	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/tenant"
)

// PostgresLedger stores seed applications in the control schema's
// seed_applications table.
type PostgresLedger struct {
	q partition.Querier
}

// NewPostgresLedger creates a ledger backed by the given querier.
func NewPostgresLedger(q partition.Querier) *PostgresLedger {
	return &PostgresLedger{q: q}
}

func (l *PostgresLedger) AppliedVersion(ctx context.Context, tenantKey, packID string) (int, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return 0, err
	}
	var version int
	err := l.q.QueryRow(ctx,
		"SELECT COALESCE(MAX(pack_version), 0) FROM tenancy.seed_applications WHERE tenant_key = $1 AND pack_id = $2",
		tenantKey, packID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed ledger for %q/%q: %w", tenantKey, packID, err)
	}
	return version, nil
}

func (l *PostgresLedger) RecordApplication(ctx context.Context, tenantKey, packID string, version int) error {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return err
	}
	if version <= 0 {
		return fmt.Errorf("%w: pack version must be positive", tenant.ErrInvalidInput)
	}
	_, err := l.q.Exec(ctx,
		"INSERT INTO tenancy.seed_applications (tenant_key, pack_id, pack_version) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		tenantKey, packID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to record seed application %q/%q@%d: %w", tenantKey, packID, version, err)
	}
	return nil
}
