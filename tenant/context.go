package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Context is the call-scoped identity of "which tenant is this operation
// acting on behalf of". It is bound at the start of one request or one job
// iteration, read-only afterwards, and discarded at the end. It is never
// persisted and never shared across concurrent operations: each operation
// carries its own binding on its context.Context.
type Context struct {
	// Partition is the resolved partition name all storage operations of this
	// call must target. Resolved once, from the registry, at bind time.
	Partition string

	// OrgID is the external organisation identifier of the tenant — the same
	// value as the tenant key, and the value the discriminator column carries
	// in the shared partition.
	OrgID string

	// MemberID identifies the acting member, when the operation runs on
	// behalf of a person rather than a system job.
	MemberID uuid.UUID

	// Role is the acting member's role, when known.
	Role string
}

type contextKey struct{}

// Bind returns a child context carrying tc. Nested operations inherit the
// binding; a scheduled job iterating over many tenants rebinds per tenant,
// which shadows the parent binding for the duration of that iteration.
func Bind(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the bound tenant context. Unbound access fails with
// ErrContextNotBound rather than returning a zero value: a storage operation
// with no tenant bound must not guess.
func FromContext(ctx context.Context) (Context, error) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	if !ok {
		return Context{}, ErrContextNotBound
	}
	return tc, nil
}

// PartitionFromContext is a convenience accessor for the single value most
// storage code needs.
func PartitionFromContext(ctx context.Context) (string, error) {
	tc, err := FromContext(ctx)
	if err != nil {
		return "", err
	}
	return tc.Partition, nil
}
