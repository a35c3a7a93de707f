package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stokaro/tenancy/tenant"
)

// MemoryRegistry is an in-memory Registry for tests and local development.
type MemoryRegistry struct {
	mu       sync.Mutex
	mappings map[string]string
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{mappings: make(map[string]string)}
}

func (r *MemoryRegistry) Lookup(_ context.Context, tenantKey string) (string, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.mappings[tenantKey]
	if !ok {
		return "", fmt.Errorf("%w: no mapping for %q", tenant.ErrNotFound, tenantKey)
	}
	return name, nil
}

func (r *MemoryRegistry) CreateMapping(_ context.Context, tenantKey, part string) (string, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.mappings[tenantKey]; ok {
		return existing, nil
	}
	r.mappings[tenantKey] = part
	return part, nil
}

func (r *MemoryRegistry) Repoint(_ context.Context, tenantKey, newPartition string) error {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mappings[tenantKey]; !ok {
		return fmt.Errorf("%w: cannot repoint %q, no mapping exists", tenant.ErrNotFound, tenantKey)
	}
	r.mappings[tenantKey] = newPartition
	return nil
}

// MemoryRecords is an in-memory Records store for tests and local
// development.
type MemoryRecords struct {
	mu      sync.Mutex
	records map[string]tenant.Record
}

// NewMemoryRecords creates an empty in-memory record store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]tenant.Record)}
}

func (s *MemoryRecords) Create(_ context.Context, rec tenant.Record) (tenant.Record, error) {
	if err := tenant.ValidateKey(rec.Key); err != nil {
		return tenant.Record{}, err
	}
	if !rec.Tier.Valid() {
		return tenant.Record{}, fmt.Errorf("%w: unknown tier %q", tenant.ErrInvalidInput, rec.Tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Key]; ok {
		return existing, nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.State = tenant.ProvisioningPending
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.records[rec.Key] = rec
	return rec, nil
}

func (s *MemoryRecords) Get(_ context.Context, tenantKey string) (tenant.Record, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return tenant.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tenantKey]
	if !ok {
		return tenant.Record{}, fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	return rec, nil
}

func (s *MemoryRecords) List(_ context.Context) ([]tenant.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]tenant.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (s *MemoryRecords) SetState(_ context.Context, tenantKey string, state tenant.ProvisioningState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tenantKey]
	if !ok {
		return fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	rec.State = state
	rec.UpdatedAt = time.Now()
	s.records[tenantKey] = rec
	return nil
}

func (s *MemoryRecords) SetPlan(_ context.Context, tenantKey, planID string, tier tenant.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", tenant.ErrInvalidInput, tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tenantKey]
	if !ok {
		return fmt.Errorf("%w: no record for %q", tenant.ErrNotFound, tenantKey)
	}
	rec.PlanID = planID
	rec.Tier = tier
	rec.UpdatedAt = time.Now()
	s.records[tenantKey] = rec
	return nil
}
