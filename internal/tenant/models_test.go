package tenant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSKUMap(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"valid object", `{"E5":"sku-123","A1":"sku-456"}`, map[string]string{"E5": "sku-123", "A1": "sku-456"}},
		{"array fails open", `["E5","A1"]`, map[string]string{}},
		{"scalar fails open", `"E5"`, map[string]string{}},
		{"null fails open", `null`, map[string]string{}},
		{"garbage fails open", `{broken`, map[string]string{}},
		{"non-string values fail open", `{"E5":5}`, map[string]string{}},
		{"empty input", ``, map[string]string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeSKUMap(json.RawMessage(tc.in))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLookupSKUFailsClosed(t *testing.T) {
	tn := &Tenant{SKUMap: map[string]string{"E5": "sku-123", "blank": ""}}

	id, ok := tn.LookupSKU("E5")
	assert.True(t, ok)
	assert.Equal(t, "sku-123", id)

	_, ok = tn.LookupSKU("A1")
	assert.False(t, ok)

	_, ok = tn.LookupSKU("blank")
	assert.False(t, ok, "empty SKU ids are treated as missing")
}

func TestAddress(t *testing.T) {
	tn := &Tenant{DefaultDomain: "t1.example.com"}
	assert.Equal(t, "alice42@t1.example.com", tn.Address("alice42"))

	tn.DefaultDomain = "@t1.example.com"
	assert.Equal(t, "alice42@t1.example.com", tn.Address("alice42"))
}
