// Package schemaid derives physical partition names from external tenant
// keys.
//
// The derivation is a one-way digest: the same tenant key always yields the
// same partition name (retries and idempotent replays must agree), the key is
// not recoverable from the name, and the output charset is fixed so a
// tenant-controlled key can never smuggle SQL into a schema identifier.
//
// The generator runs exactly once per tenant, at first dedicated-partition
// creation. Afterwards the registry mapping is authoritative: routing and
// upgrades read the name back from the registry and never re-derive it, so a
// future change to the naming scheme cannot diverge from existing mappings.
package schemaid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/stokaro/tenancy/tenant"
)

// Prefix is the static token every generated partition name starts with.
const Prefix = "tenant_"

// DigestLength is the number of lowercase hex characters following the
// prefix.
const DigestLength = 12

// Generate maps an external tenant key to its dedicated partition name:
// Prefix plus the first DigestLength lowercase hex characters of the SHA-256
// digest of the key. Pure function: no I/O, no side effects. Blank keys fail
// with tenant.ErrInvalidInput.
func Generate(tenantKey string) (string, error) {
	if err := tenant.ValidateKey(tenantKey); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(tenantKey))
	return Prefix + hex.EncodeToString(sum[:])[:DigestLength], nil
}

// IsGenerated reports whether name has the shape produced by Generate. Used
// to distinguish dedicated partitions from the reserved shared partition and
// from arbitrary schema names.
func IsGenerated(name string) bool {
	if len(name) != len(Prefix)+DigestLength {
		return false
	}
	if name[:len(Prefix)] != Prefix {
		return false
	}
	for _, r := range name[len(Prefix):] {
		isHexDigit := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !isHexDigit {
			return false
		}
	}
	return true
}
