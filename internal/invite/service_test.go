package invite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "provisio/pkg/domain-errors"
)

func scopeT1E5() []Scope {
	return []Scope{{TenantID: "t1", SKUName: "E5"}}
}

func validGenerate() *GenerateCommand {
	return &GenerateCommand{
		CharClasses:  []string{ClassLower, ClassDigit},
		Length:       8,
		Quantity:     5,
		PerCodeLimit: 1,
		Scopes:       scopeT1E5(),
	}
}

func TestGenerate(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	invites, err := svc.Generate(ctx, validGenerate())
	require.NoError(t, err)
	require.Len(t, invites, 5)

	seen := map[string]bool{}
	for _, inv := range invites {
		assert.Len(t, inv.Code, 8)
		assert.False(t, seen[inv.Code], "codes must be unique")
		seen[inv.Code] = true
		assert.Equal(t, 1, inv.Limit)
		assert.Zero(t, inv.Used)
		assert.Nil(t, inv.UsedAt)
		assert.Equal(t, scopeT1E5(), inv.Scopes)

		for _, r := range inv.Code {
			assert.Contains(t, classAlphabets[ClassLower]+classAlphabets[ClassDigit], string(r))
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*GenerateCommand)
	}{
		{"no character classes", func(c *GenerateCommand) { c.CharClasses = nil }},
		{"unknown class", func(c *GenerateCommand) { c.CharClasses = []string{"emoji"} }},
		{"no scopes", func(c *GenerateCommand) { c.Scopes = nil }},
		{"blank scope", func(c *GenerateCommand) { c.Scopes = []Scope{{TenantID: "t1"}} }},
		{"length too short", func(c *GenerateCommand) { c.Length = 2 }},
		{"zero quantity", func(c *GenerateCommand) { c.Quantity = 0 }},
		{"zero limit", func(c *GenerateCommand) { c.PerCodeLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validGenerate()
			tc.mutate(cmd)
			_, err := svc.Generate(ctx, cmd)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestGenerateSymbolClass(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	cmd := validGenerate()
	cmd.CharClasses = []string{ClassSymbol}
	cmd.Quantity = 1

	invites, err := svc.Generate(context.Background(), cmd)
	require.NoError(t, err)
	for _, r := range invites[0].Code {
		assert.True(t, strings.ContainsRune(classAlphabets[ClassSymbol], r))
	}
}

func TestRedeem(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	cmd := validGenerate()
	cmd.Quantity = 1
	cmd.PerCodeLimit = 2
	invites, err := svc.Generate(ctx, cmd)
	require.NoError(t, err)
	code := invites[0].Code

	inv, err := svc.Redeem(ctx, code, "t1", "E5")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Used)
	require.NotNil(t, inv.UsedAt)

	inv, err = svc.Redeem(ctx, code, "t1", "E5")
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Used)

	_, err = svc.Redeem(ctx, code, "t1", "E5")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExhausted))
}

func TestRedeemOutcomes(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	cmd := validGenerate()
	cmd.Quantity = 1
	invites, err := svc.Generate(ctx, cmd)
	require.NoError(t, err)
	code := invites[0].Code

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Redeem(ctx, "nope", "t1", "E5")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("scope mismatch on SKU", func(t *testing.T) {
		_, err := svc.Redeem(ctx, code, "t1", "A1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeScopeMismatch))
	})

	t.Run("scope mismatch on tenant", func(t *testing.T) {
		_, err := svc.Redeem(ctx, code, "t2", "E5")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeScopeMismatch))
	})

	t.Run("mismatch does not consume a use", func(t *testing.T) {
		inv, err := svc.Redeem(ctx, code, "t1", "E5")
		require.NoError(t, err)
		assert.Equal(t, 1, inv.Used)
	})
}

func TestRedeemAgainstDeletedTenantScope(t *testing.T) {
	// A tenant can be deleted while codes still reference it; redemption must
	// fail cleanly with a scope error, not blow up.
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	cmd := validGenerate()
	cmd.Quantity = 1
	invites, err := svc.Generate(ctx, cmd)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, invites[0].Code, "deleted-tenant", "E5")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeScopeMismatch))
}

func TestBulkDelete(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	invites, err := svc.Generate(ctx, validGenerate())
	require.NoError(t, err)

	codes := []string{invites[0].Code, invites[1].Code}
	require.NoError(t, svc.BulkDelete(ctx, codes))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	err = svc.BulkDelete(ctx, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
