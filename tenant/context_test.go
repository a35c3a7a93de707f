package tenant_test

import (
	"context"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/tenancy/tenant"
)

func TestFromContext_Unbound(t *testing.T) {
	c := qt.New(t)

	_, err := tenant.FromContext(context.Background())
	c.Assert(err, qt.ErrorIs, tenant.ErrContextNotBound)

	_, err = tenant.PartitionFromContext(context.Background())
	c.Assert(err, qt.ErrorIs, tenant.ErrContextNotBound)
}

func TestBind_RoundTrip(t *testing.T) {
	c := qt.New(t)

	ctx := tenant.Bind(context.Background(), tenant.Context{
		Partition: "tenant_0a1b2c3d4e5f",
		OrgID:     "org-acme",
		Role:      "admin",
	})

	tc, err := tenant.FromContext(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(tc.Partition, qt.Equals, "tenant_0a1b2c3d4e5f")
	c.Assert(tc.OrgID, qt.Equals, "org-acme")
	c.Assert(tc.Role, qt.Equals, "admin")

	partition, err := tenant.PartitionFromContext(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(partition, qt.Equals, "tenant_0a1b2c3d4e5f")
}

func TestBind_RebindShadowsParent(t *testing.T) {
	c := qt.New(t)

	parent := tenant.Bind(context.Background(), tenant.Context{Partition: tenant.SharedPartition, OrgID: "org-a"})
	child := tenant.Bind(parent, tenant.Context{Partition: "tenant_ffeeddccbbaa", OrgID: "org-b"})

	// The child sees its own binding.
	tc, err := tenant.FromContext(child)
	c.Assert(err, qt.IsNil)
	c.Assert(tc.OrgID, qt.Equals, "org-b")

	// The parent binding is untouched.
	tc, err = tenant.FromContext(parent)
	c.Assert(err, qt.IsNil)
	c.Assert(tc.OrgID, qt.Equals, "org-a")
	c.Assert(tc.Partition, qt.Equals, tenant.SharedPartition)
}

func TestBind_ConcurrentBindingsAreIndependent(t *testing.T) {
	c := qt.New(t)

	base := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	check := func(org, partition string) {
		defer wg.Done()
		ctx := tenant.Bind(base, tenant.Context{Partition: partition, OrgID: org})
		for range 1000 {
			tc, err := tenant.FromContext(ctx)
			if err != nil {
				errs <- err
				return
			}
			if tc.OrgID != org || tc.Partition != partition {
				errs <- tenant.ErrContextNotBound
				return
			}
		}
	}

	wg.Add(2)
	go check("org-a", tenant.SharedPartition)
	go check("org-b", "tenant_0102030405aa")
	wg.Wait()
	close(errs)

	for err := range errs {
		c.Assert(err, qt.IsNil)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "plain key", key: "acme", wantErr: false},
		{name: "key with punctuation", key: "acme-corp.eu", wantErr: false},
		{name: "empty", key: "", wantErr: true},
		{name: "spaces only", key: "   ", wantErr: true},
		{name: "tabs and newlines", key: "\t\n", wantErr: true},
		{name: "padded but non-blank", key: " acme ", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			err := tenant.ValidateKey(tt.key)
			if tt.wantErr {
				c.Assert(err, qt.ErrorIs, tenant.ErrInvalidInput)
				return
			}
			c.Assert(err, qt.IsNil)
		})
	}
}
