// Package guard decides whether an account address is off-limits for creation
// or destructive mutation. It is rebuilt from the settings snapshot on every
// check so configuration edits take effect immediately.
package guard

import "strings"

// Guard holds the reserved-name sets for one check. Matching on the
// local-part is exact equality, not a prefix scan: a reserved name "admin"
// blocks "admin@x" but not "administrator@x". The legacy full-address set
// matches entire lower-cased addresses.
type Guard struct {
	names     map[string]struct{}
	addresses map[string]struct{}
}

// New builds a guard from reserved local-parts and legacy full addresses.
// All entries are lower-cased; blank entries are ignored.
func New(reservedNames, reservedAddresses []string) *Guard {
	g := &Guard{
		names:     make(map[string]struct{}, len(reservedNames)),
		addresses: make(map[string]struct{}, len(reservedAddresses)),
	}
	for _, n := range reservedNames {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			g.names[n] = struct{}{}
		}
	}
	for _, a := range reservedAddresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			g.addresses[a] = struct{}{}
		}
	}
	return g
}

// IsProtected reports whether the address must not be created or mutated.
// The address is lower-cased; its local-part (text before "@") is compared
// for exact equality against the reserved-name set, and the full address
// against the legacy set.
func (g *Guard) IsProtected(address string) bool {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return false
	}
	if _, ok := g.addresses[addr]; ok {
		return true
	}
	local := addr
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		local = addr[:i]
	}
	_, ok := g.names[local]
	return ok
}
