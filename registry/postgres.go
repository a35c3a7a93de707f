package registry

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stokaro/tenancy/partition"
	"github.com/stokaro/tenancy/tenant"
)

//go:embed base/schema.sql
var controlSchemaSQL string

// ControlSchema is the schema holding the registry's own tables. It is not a
// partition: partition schemas hold tenant data, the control schema holds the
// routing and lifecycle state about tenants.
const ControlSchema = "tenancy"

// PostgresRegistry implements Registry over the control schema.
type PostgresRegistry struct {
	q partition.Querier
}

// NewPostgresRegistry creates a Registry backed by the given querier.
func NewPostgresRegistry(q partition.Querier) *PostgresRegistry {
	return &PostgresRegistry{q: q}
}

// EnsureControlSchema creates the control schema and its tables if they do
// not exist. Idempotent; run at startup.
func EnsureControlSchema(ctx context.Context, q partition.Querier) error {
	if _, err := q.Exec(ctx, controlSchemaSQL); err != nil {
		return fmt.Errorf("failed to create control schema: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Lookup(ctx context.Context, tenantKey string) (string, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return "", err
	}
	var name string
	err := r.q.QueryRow(ctx,
		"SELECT partition_name FROM tenancy.partition_mappings WHERE tenant_key = $1", tenantKey,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: no mapping for %q", tenant.ErrNotFound, tenantKey)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up mapping for %q: %w", tenantKey, err)
	}
	return name, nil
}

// CreateMapping is a conditional insert: ON CONFLICT DO NOTHING followed by a
// read-back, so two concurrent provisioners converge on whichever row won
// without a serialization failure.
func (r *PostgresRegistry) CreateMapping(ctx context.Context, tenantKey, part string) (string, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return "", err
	}
	_, err := r.q.Exec(ctx,
		"INSERT INTO tenancy.partition_mappings (tenant_key, partition_name) VALUES ($1, $2) ON CONFLICT (tenant_key) DO NOTHING",
		tenantKey, part,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create mapping for %q: %w", tenantKey, err)
	}
	return r.Lookup(ctx, tenantKey)
}

func (r *PostgresRegistry) Repoint(ctx context.Context, tenantKey, newPartition string) error {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx,
		"UPDATE tenancy.partition_mappings SET partition_name = $2, updated_at = now() WHERE tenant_key = $1",
		tenantKey, newPartition,
	)
	if err != nil {
		return fmt.Errorf("failed to repoint %q to %q: %w", tenantKey, newPartition, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cannot repoint %q, no mapping exists", tenant.ErrNotFound, tenantKey)
	}
	return nil
}

// PostgresRecords implements Records over the control schema.
type PostgresRecords struct {
	q partition.Querier
}

// NewPostgresRecords creates a Records store backed by the given querier.
func NewPostgresRecords(q partition.Querier) *PostgresRecords {
	return &PostgresRecords{q: q}
}

func (s *PostgresRecords) Create(ctx context.Context, rec tenant.Record) (tenant.Record, error) {
	if err := tenant.ValidateKey(rec.Key); err != nil {
		return tenant.Record{}, err
	}
	if !rec.Tier.Valid() {
		return tenant.Record{}, fmt.Errorf("%w: unknown tier %q", tenant.ErrInvalidInput, rec.Tier)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.State = tenant.ProvisioningPending

	_, err := s.q.Exec(ctx,
		`INSERT INTO tenancy.tenant_records (id, tenant_key, display_name, tier, state, plan_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_key) DO NOTHING`,
		rec.ID, rec.Key, rec.DisplayName, rec.Tier, rec.State, rec.PlanID,
	)
	if err != nil {
		return tenant.Record{}, fmt.Errorf("failed to create tenant record %q: %w", rec.Key, err)
	}
	return s.Get(ctx, rec.Key)
}

const recordColumns = "id, tenant_key, display_name, tier, state, plan_id, created_at, updated_at"

func scanRecord(row pgx.Row) (tenant.Record, error) {
	var rec tenant.Record
	err := row.Scan(&rec.ID, &rec.Key, &rec.DisplayName, &rec.Tier, &rec.State, &rec.PlanID, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (s *PostgresRecords) Get(ctx context.Context, tenantKey string) (tenant.Record, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return tenant.Record{}, err
	}
	rec, err := scanRecord(s.q.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM tenancy.tenant_records WHERE tenant_key = $1", tenantKey,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.Record{}, fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	if err != nil {
		return tenant.Record{}, fmt.Errorf("failed to get tenant record %q: %w", tenantKey, err)
	}
	return rec, nil
}

func (s *PostgresRecords) List(ctx context.Context) ([]tenant.Record, error) {
	rows, err := s.q.Query(ctx, "SELECT "+recordColumns+" FROM tenancy.tenant_records ORDER BY tenant_key")
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant records: %w", err)
	}
	defer rows.Close()

	var records []tenant.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant records: %w", err)
	}
	return records, nil
}

func (s *PostgresRecords) SetState(ctx context.Context, tenantKey string, state tenant.ProvisioningState) error {
	tag, err := s.q.Exec(ctx,
		"UPDATE tenancy.tenant_records SET state = $2, updated_at = now() WHERE tenant_key = $1",
		tenantKey, state,
	)
	if err != nil {
		return fmt.Errorf("failed to set state of %q to %s: %w", tenantKey, state, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	return nil
}

func (s *PostgresRecords) SetPlan(ctx context.Context, tenantKey, planID string, tier tenant.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", tenant.ErrInvalidInput, tier)
	}
	tag, err := s.q.Exec(ctx,
		"UPDATE tenancy.tenant_records SET plan_id = $2, tier = $3, updated_at = now() WHERE tenant_key = $1",
		tenantKey, planID, tier,
	)
	if err != nil {
		return fmt.Errorf("failed to set plan of %q: %w", tenantKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	return nil
}
