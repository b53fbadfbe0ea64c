// Package settings holds the runtime-tunable portion of configuration:
// captcha credentials, invite requirement, reserved names, and hidden
// accounts. Workflows fetch an immutable snapshot at the start of each
// request instead of sharing a mutable global.
package settings

import (
	"context"

	"provisio/internal/guard"
)

// Settings is one immutable snapshot of the runtime configuration.
type Settings struct {
	CaptchaSecret  string   `json:"captchaSecret"`
	CaptchaSiteKey string   `json:"captchaSiteKey"`
	RequireInvite  bool     `json:"requireInvite"`
	UsageLocation  string   `json:"usageLocation"`
	ReservedNames  []string `json:"reservedNames"`
	// ReservedAddresses is the legacy full-address set.
	ReservedAddresses []string `json:"reservedAddresses"`
	// HiddenUsers are full addresses filtered from admin listings and
	// protected from creation and mutation like reserved addresses.
	HiddenUsers []string `json:"hiddenUsers"`
}

// Guard builds the protection guard for this snapshot. Hidden users join the
// legacy full-address set so they can be neither re-created nor deleted.
func (s *Settings) Guard() *guard.Guard {
	addresses := make([]string, 0, len(s.ReservedAddresses)+len(s.HiddenUsers))
	addresses = append(addresses, s.ReservedAddresses...)
	addresses = append(addresses, s.HiddenUsers...)
	return guard.New(s.ReservedNames, addresses)
}

// CaptchaEnabled reports whether registration must pass captcha verification.
func (s *Settings) CaptchaEnabled() bool {
	return s.CaptchaSecret != ""
}

// Store persists the settings record in the shared key-value store.
type Store interface {
	// Get returns the current settings, or domain-errors CodeNotFound when
	// the record has never been written.
	Get(ctx context.Context) (*Settings, error)
	Put(ctx context.Context, s *Settings) error
}

// Service wraps a store with default seeding.
type Service struct {
	store    Store
	defaults Settings
}

func NewService(store Store, defaults Settings) *Service {
	return &Service{store: store, defaults: defaults}
}

// Snapshot returns the stored settings, falling back to the seeded defaults
// when nothing has been written yet.
func (s *Service) Snapshot(ctx context.Context) (*Settings, error) {
	stored, err := s.store.Get(ctx)
	if err == nil {
		return stored, nil
	}
	if isNotFound(err) {
		cp := s.defaults
		return &cp, nil
	}
	return nil, err
}

// Update replaces the stored settings record.
func (s *Service) Update(ctx context.Context, next *Settings) error {
	return s.store.Put(ctx, next)
}
