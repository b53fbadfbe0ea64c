package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProtected_ExactLocalPartMatch(t *testing.T) {
	g := New([]string{"admin", "postmaster"}, nil)

	assert.True(t, g.IsProtected("admin@t1.example.com"))
	assert.True(t, g.IsProtected("admin@t2.example.org"), "reserved names apply across all domains")
	assert.True(t, g.IsProtected("ADMIN@T1.EXAMPLE.COM"))

	// Exact equality, not a prefix test.
	assert.False(t, g.IsProtected("administrator@t1.example.com"))
	assert.False(t, g.IsProtected("admin2@t1.example.com"))
}

func TestIsProtected_LegacyFullAddresses(t *testing.T) {
	g := New(nil, []string{"Root@Corp.Example.Com"})

	assert.True(t, g.IsProtected("root@corp.example.com"))
	assert.False(t, g.IsProtected("root@other.example.com"))
}

func TestIsProtected_Edges(t *testing.T) {
	g := New([]string{"admin", " ", ""}, []string{""})

	assert.False(t, g.IsProtected(""))
	assert.False(t, g.IsProtected("alice@t1.example.com"))
	// An address with no domain separator is matched on the whole string.
	assert.True(t, g.IsProtected("admin"))
}
