package license

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provisio/internal/directory"
	"provisio/internal/tenant"
)

func testTenant(id string) *tenant.Tenant {
	return &tenant.Tenant{
		ID:    id,
		Label: "Tenant " + id,
		SKUMap: map[string]string{
			"E5": "sku-e5",
			"A1": "sku-a1",
		},
	}
}

func TestSummarize(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	later := expiry.AddDate(0, 3, 0)

	skus := []directory.SKU{
		{ID: "sku-a1", PartNumber: "STANDARDWOFFPACK", Total: 100, Used: 40},
		{ID: "sku-e5", PartNumber: "ENTERPRISEPREMIUM", Total: 10, Used: 3},
	}
	subs := []directory.Subscription{
		{SKUID: "sku-e5", NextLifecycle: &later},
		{SKUID: "sku-e5", NextLifecycle: &expiry},
		{SKUID: "sku-a1", NextLifecycle: nil},
	}

	usages := Summarize(testTenant("t1"), skus, subs)
	require.Len(t, usages, 2)

	// Sorted by remaining seats, most first.
	assert.Equal(t, "A1", usages[0].Name)
	assert.Equal(t, 60, usages[0].Remaining)
	assert.Nil(t, usages[0].ExpiresAt)

	e5 := usages[1]
	assert.Equal(t, "E5", e5.Name)
	assert.Equal(t, "t1", e5.TenantID)
	assert.Equal(t, "Tenant t1", e5.TenantLabel)
	assert.Equal(t, 7, e5.Remaining)
	require.NotNil(t, e5.ExpiresAt)
	assert.True(t, e5.ExpiresAt.Equal(expiry), "earliest lifecycle date wins")
}

func TestSummarizeOverconsumedClampsToZero(t *testing.T) {
	skus := []directory.SKU{{ID: "sku-e5", PartNumber: "ENTERPRISEPREMIUM", Total: 10, Used: 15}}

	usages := Summarize(testTenant("t1"), skus, nil)
	require.Len(t, usages, 1)
	assert.Equal(t, 10, usages[0].Total)
	assert.Equal(t, 15, usages[0].Used)
	assert.Equal(t, 0, usages[0].Remaining)
}

func TestSummarizeUnmappedSKUFallsBackToPartNumber(t *testing.T) {
	skus := []directory.SKU{{ID: "sku-unknown", PartNumber: "FLOW_FREE", Total: 5, Used: 1}}

	usages := Summarize(testTenant("t1"), skus, nil)
	require.Len(t, usages, 1)
	assert.Equal(t, "FLOW_FREE", usages[0].Name)
}

type fakeLister struct {
	skus map[string][]directory.SKU
	subs map[string][]directory.Subscription
	errs map[string]error
}

func (f *fakeLister) ListLicenseSKUs(_ context.Context, t *tenant.Tenant) ([]directory.SKU, error) {
	if err := f.errs[t.ID]; err != nil {
		return nil, err
	}
	return f.skus[t.ID], nil
}

func (f *fakeLister) ListSubscriptionExpirations(_ context.Context, t *tenant.Tenant) ([]directory.Subscription, error) {
	return f.subs[t.ID], nil
}

func TestAggregateSkipsFailingTenants(t *testing.T) {
	lister := &fakeLister{
		skus: map[string][]directory.SKU{
			"t1": {{ID: "sku-e5", PartNumber: "ENTERPRISEPREMIUM", Total: 10, Used: 3}},
			"t2": {{ID: "sku-a1", PartNumber: "STANDARDWOFFPACK", Total: 50, Used: 10}},
		},
		errs: map[string]error{"t3": errors.New("invalid client secret")},
	}
	svc := NewService(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	usages, err := svc.Aggregate(context.Background(),
		[]*tenant.Tenant{testTenant("t1"), testTenant("t2"), testTenant("t3")})
	require.NoError(t, err)
	require.Len(t, usages, 2)

	// Globally re-sorted across tenants by remaining seats.
	assert.Equal(t, "t2", usages[0].TenantID)
	assert.Equal(t, 40, usages[0].Remaining)
	assert.Equal(t, "t1", usages[1].TenantID)
}
