package invite

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "provisio/pkg/domain-errors"
)

var redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "provisio_invite_redemptions_total",
	Help: "Invite redemption attempts by result",
}, []string{"result"})

// Character classes codes may be drawn from.
const (
	ClassLower  = "lower"
	ClassUpper  = "upper"
	ClassDigit  = "digit"
	ClassSymbol = "symbol"
)

var classAlphabets = map[string]string{
	ClassLower:  "abcdefghijklmnopqrstuvwxyz",
	ClassUpper:  "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	ClassDigit:  "0123456789",
	ClassSymbol: "!@#$%^&*",
}

const (
	maxQuantity   = 1000
	minCodeLength = 4
	maxCodeLength = 64

	// createRetries bounds regeneration when a random code collides with an
	// existing one.
	createRetries = 5
)

// Service manages the invite ledger.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GenerateCommand describes one batch of codes to mint.
type GenerateCommand struct {
	CharClasses  []string
	Length       int
	Quantity     int
	PerCodeLimit int
	Scopes       []Scope
}

// Generate mints a batch of codes, each drawn independently from the union of
// the selected character classes.
func (s *Service) Generate(ctx context.Context, cmd *GenerateCommand) ([]*Invite, error) {
	alphabet, err := buildAlphabet(cmd.CharClasses)
	if err != nil {
		return nil, err
	}
	if len(cmd.Scopes) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one scope is required")
	}
	for _, scope := range cmd.Scopes {
		if scope.TenantID == "" || scope.SKUName == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "scopes require both tenant and SKU")
		}
	}
	if cmd.Length < minCodeLength || cmd.Length > maxCodeLength {
		return nil, dErrors.New(dErrors.CodeValidation, "code length out of range")
	}
	if cmd.Quantity < 1 || cmd.Quantity > maxQuantity {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity out of range")
	}
	if cmd.PerCodeLimit < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "per-code limit must be at least 1")
	}

	created := make([]*Invite, 0, cmd.Quantity)
	now := s.now().UTC()
	for i := 0; i < cmd.Quantity; i++ {
		inv, err := s.createOne(ctx, alphabet, cmd, now)
		if err != nil {
			return created, err
		}
		created = append(created, inv)
	}
	return created, nil
}

func (s *Service) createOne(ctx context.Context, alphabet string, cmd *GenerateCommand, now time.Time) (*Invite, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		code, err := randomCode(alphabet, cmd.Length)
		if err != nil {
			return nil, err
		}
		inv := &Invite{
			Code:      code,
			Limit:     cmd.PerCodeLimit,
			CreatedAt: now,
			Scopes:    append([]Scope(nil), cmd.Scopes...),
		}
		err = s.store.Create(ctx, inv)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "could not generate a unique invite code")
}

func buildAlphabet(classes []string) (string, error) {
	if len(classes) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "at least one character class is required")
	}
	seen := make(map[string]bool, len(classes))
	alphabet := ""
	for _, class := range classes {
		chars, ok := classAlphabets[class]
		if !ok {
			return "", dErrors.New(dErrors.CodeValidation, "unknown character class: "+class)
		}
		if !seen[class] {
			alphabet += chars
			seen[class] = true
		}
	}
	return alphabet, nil
}

func randomCode(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "random source unavailable")
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Redeem consumes one use of a code for the given scope.
func (s *Service) Redeem(ctx context.Context, code, tenantID, skuName string) (*Invite, error) {
	inv, err := s.store.Redeem(ctx, code, tenantID, skuName, s.now().UTC())
	if err != nil {
		redemptions.WithLabelValues(redemptionResult(err)).Inc()
		return nil, err
	}
	redemptions.WithLabelValues("ok").Inc()
	return inv, nil
}

func redemptionResult(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return "not_found"
	case dErrors.HasCode(err, dErrors.CodeExhausted):
		return "exhausted"
	case dErrors.HasCode(err, dErrors.CodeScopeMismatch):
		return "scope_mismatch"
	default:
		return "error"
	}
}

// List returns the whole ledger.
func (s *Service) List(ctx context.Context) ([]*Invite, error) {
	return s.store.List(ctx)
}

// BulkDelete removes all entries with a matching code.
func (s *Service) BulkDelete(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no codes given")
	}
	return s.store.Delete(ctx, codes)
}
