package schemaid_test

import (
	"fmt"
	"regexp"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/tenancy/schemaid"
	"github.com/stokaro/tenancy/tenant"
)

var namePattern = regexp.MustCompile(`^tenant_[0-9a-f]{12}$`)

func TestGenerate_Deterministic(t *testing.T) {
	c := qt.New(t)

	first, err := schemaid.Generate("acme")
	c.Assert(err, qt.IsNil)

	for range 100 {
		again, err := schemaid.Generate("acme")
		c.Assert(err, qt.IsNil)
		c.Assert(again, qt.Equals, first)
	}
}

func TestGenerate_Pattern(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "plain", key: "acme"},
		{name: "uuid-like key", key: "3f2c9a6e-8b1d-4e7a-9c55-2d0f4b8a1c3e"},
		{name: "hostile key", key: `x"; DROP SCHEMA shared CASCADE; --`},
		{name: "unicode key", key: "ünïcødé-租户"},
		{name: "very long key", key: "k" + string(make([]byte, 4096))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			name, err := schemaid.Generate(tt.key)
			c.Assert(err, qt.IsNil)
			c.Assert(name, qt.Matches, namePattern, qt.Commentf("Generate(%q) = %q", tt.key, name))
			c.Assert(schemaid.IsGenerated(name), qt.IsTrue)
		})
	}
}

func TestGenerate_BlankInput(t *testing.T) {
	tests := []string{"", " ", "\t", "  \n  "}

	for _, key := range tests {
		t.Run(fmt.Sprintf("key=%q", key), func(t *testing.T) {
			c := qt.New(t)
			_, err := schemaid.Generate(key)
			c.Assert(err, qt.ErrorIs, tenant.ErrInvalidInput)
		})
	}
}

func TestGenerate_CollisionResistance(t *testing.T) {
	c := qt.New(t)

	seen := make(map[string]string, 20000)
	for i := range 20000 {
		key := fmt.Sprintf("tenant-%d", i)
		name, err := schemaid.Generate(key)
		c.Assert(err, qt.IsNil)
		if prev, dup := seen[name]; dup {
			c.Fatalf("collision: %q and %q both map to %q", prev, key, name)
		}
		seen[name] = key
	}
}

func TestIsGenerated(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "generated name", in: "tenant_0a1b2c3d4e5f", want: true},
		{name: "shared partition", in: tenant.SharedPartition, want: false},
		{name: "wrong prefix", in: "schema_0a1b2c3d4e5f", want: false},
		{name: "uppercase digest", in: "tenant_0A1B2C3D4E5F", want: false},
		{name: "short digest", in: "tenant_0a1b2c", want: false},
		{name: "long digest", in: "tenant_0a1b2c3d4e5f00", want: false},
		{name: "non-hex digest", in: "tenant_0a1b2c3d4e5g", want: false},
		{name: "empty", in: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(schemaid.IsGenerated(tt.in), qt.Equals, tt.want)
		})
	}
}
