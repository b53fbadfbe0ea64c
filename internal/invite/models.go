// Package invite implements the single-use-limited invite code ledger.
package invite

import "time"

// Scope is one (tenant, SKU) pair a code may be redeemed against.
type Scope struct {
	TenantID string `json:"tenantId"`
	SKUName  string `json:"skuName"`
}

// Invite is one code in the ledger. Codes are mutated only by redemption and
// never auto-deleted; removal is an explicit admin action.
type Invite struct {
	Code      string     `json:"code"`
	Limit     int        `json:"limit"`
	Used      int        `json:"used"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	Scopes    []Scope    `json:"allowedScopes"`
}

// Exhausted reports whether the code has no redemptions left.
func (i *Invite) Exhausted() bool {
	return i.Used >= i.Limit
}

// HasScope reports whether the (tenant, SKU) pair is authorized.
func (i *Invite) HasScope(tenantID, skuName string) bool {
	for _, s := range i.Scopes {
		if s.TenantID == tenantID && s.SKUName == skuName {
			return true
		}
	}
	return false
}
