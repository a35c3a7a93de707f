package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a malformed tenant key or other caller-supplied
	// value that fails validation before any storage work starts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotEligible indicates an upgrade was requested for a tenant whose
	// tier does not warrant one. Guards against a tier-change webhook racing
	// ahead of the plan-sync step.
	ErrNotEligible = errors.New("tenant not eligible for upgrade")

	// ErrNotFound indicates the tenant record or mapping does not exist.
	ErrNotFound = errors.New("tenant not found")

	// ErrContextNotBound indicates a tenant-scoped operation ran without a
	// bound tenant context. This is deliberately a hard failure: an unscoped
	// storage operation is very likely a cross-tenant bug.
	ErrContextNotBound = errors.New("tenant context not bound")
)

// ProvisioningError wraps a DDL or migration failure during dedicated
// partition creation. The tenant record has been marked FAILED and no registry
// mapping was created, so a retry starts from scratch.
type ProvisioningError struct {
	TenantKey string
	Partition string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning tenant %q (partition %q): %v", e.TenantKey, e.Partition, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// CopyError wraps a failure while copying a tenant's rows between partitions.
// Nothing externally visible has changed if the repoint had not happened yet;
// re-invoking the upgrade retries the copy.
type CopyError struct {
	TenantKey string
	Table     string
	Err       error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copying rows of tenant %q (table %q): %v", e.TenantKey, e.Table, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// CleanupError wraps a failure while deleting a tenant's rows from the shared
// partition after a successful repoint. Routing already targets the dedicated
// partition; the leftover rows are harmless duplicates and a retried upgrade
// removes them.
type CleanupError struct {
	TenantKey string
	Table     string
	Err       error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleaning up rows of tenant %q (table %q): %v", e.TenantKey, e.Table, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// ValidateKey checks that an external tenant key is usable as input to the
// naming function and the registry. Blank keys are rejected with
// ErrInvalidInput.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: tenant key is blank", ErrInvalidInput)
	}
	for _, r := range key {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: tenant key is blank", ErrInvalidInput)
}
