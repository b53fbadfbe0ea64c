// Package tenant implements the registry of directory credentials ("globals"):
// one record per external directory with its own domain and SKU catalogue.
package tenant

import (
	"encoding/json"
	"strings"
)

// Tenant is one set of directory credentials plus routing data.
type Tenant struct {
	ID            string            `json:"id"`
	Label         string            `json:"label"`
	ClientID      string            `json:"clientId"`
	ClientSecret  string            `json:"clientSecret"`
	DirectoryID   string            `json:"directoryId"`
	DefaultDomain string            `json:"defaultDomain"`
	SKUMap        map[string]string `json:"skuMap"`
}

// LookupSKU resolves a catalogue name to the directory-assigned SKU id.
// Lookups fail closed: an unknown name yields ok=false, never a guess.
func (t *Tenant) LookupSKU(name string) (string, bool) {
	id, ok := t.SKUMap[name]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SKUNames returns the catalogue names offered by this tenant.
func (t *Tenant) SKUNames() []string {
	names := make([]string, 0, len(t.SKUMap))
	for name := range t.SKUMap {
		names = append(names, name)
	}
	return names
}

// Address builds the full account address for a username under this tenant.
func (t *Tenant) Address(username string) string {
	return username + "@" + strings.TrimPrefix(t.DefaultDomain, "@")
}

// NormalizeSKUMap accepts free-form JSON for the SKU catalogue and fails open:
// anything that is not an object of string values becomes an empty map.
// Missing-SKU lookups fail closed later, so a malformed catalogue disables
// registration for the tenant instead of rejecting the record outright.
func NormalizeSKUMap(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}
