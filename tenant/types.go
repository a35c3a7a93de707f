// Package tenant defines the core domain types of the tenancy subsystem:
// tenant records with their provisioning lifecycle, the error taxonomy shared
// by all components, and the call-scoped tenant context used to route storage
// operations to the correct partition.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the subscription tier that drives partition placement.
// BASIC tenants share the reserved shared partition; PREMIUM tenants own a
// dedicated partition.
type Tier string

const (
	TierBasic   Tier = "BASIC"
	TierPremium Tier = "PREMIUM"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierBasic || t == TierPremium
}

// ProvisioningState tracks the lifecycle of a tenant's storage provisioning.
// Records are created PENDING and transition to COMPLETED on success or
// FAILED on an unrecoverable provisioning error. FAILED is operator-retriable:
// a retry starts the transition over from the same record.
type ProvisioningState string

const (
	ProvisioningPending   ProvisioningState = "PENDING"
	ProvisioningCompleted ProvisioningState = "COMPLETED"
	ProvisioningFailed    ProvisioningState = "FAILED"
)

// Record is the durable state of one tenant. Records are never deleted;
// deactivation is expressed through state, not row removal.
//
// Key is the external tenant key (immutable, assigned by the identity
// provider). PlanID is the billing provider's plan reference that last drove
// the tier value.
type Record struct {
	ID          uuid.UUID
	Key         string
	DisplayName string
	Tier        Tier
	State       ProvisioningState
	PlanID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SharedPartition is the reserved name of the partition holding all
// BASIC-tier tenants' rows, discriminated by the tenant key column.
const SharedPartition = "shared"

// IsShared reports whether partition is the reserved shared partition.
func IsShared(partition string) bool {
	return partition == SharedPartition
}
