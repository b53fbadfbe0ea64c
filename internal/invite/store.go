package invite

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "provisio/internal/platform/redis"
	dErrors "provisio/pkg/domain-errors"
)

// Store persists the invite ledger. Redeem is the serialization point for the
// `used <= limit` invariant: implementations must make the check-and-increment
// atomic under concurrent redemption attempts.
type Store interface {
	// Create fails with CodeConflict when the code already exists.
	Create(ctx context.Context, inv *Invite) error
	Get(ctx context.Context, code string) (*Invite, error)
	List(ctx context.Context) ([]*Invite, error)
	// Redeem verifies the code exists, has redemptions left, and covers the
	// (tenant, SKU) scope, then increments the use count and stamps UsedAt.
	Redeem(ctx context.Context, code, tenantID, skuName string, now time.Time) (*Invite, error)
	Delete(ctx context.Context, codes []string) error
}

var (
	errNotFound      = dErrors.New(dErrors.CodeNotFound, "invite code not found")
	errExhausted     = dErrors.New(dErrors.CodeExhausted, "invite code has no redemptions left")
	errScopeMismatch = dErrors.New(dErrors.CodeScopeMismatch, "no matching scope for this invite code")
)

// checkRedeemable applies the redemption checks in order: existence is the
// caller's concern, then remaining uses, then scope membership.
func checkRedeemable(inv *Invite, tenantID, skuName string) error {
	if inv.Exhausted() {
		return errExhausted
	}
	if !inv.HasScope(tenantID, skuName) {
		return errScopeMismatch
	}
	return nil
}

const (
	inviteKeyPrefix = "invite:"
	inviteIndexKey  = "invites"

	// redeemRetries bounds the optimistic-concurrency retry loop. Conflicts
	// only occur when another redemption of the same code lands between read
	// and write, so a handful of retries is plenty.
	redeemRetries = 16
)

// RedisStore keeps one JSON document per code plus a code index set.
// Per-code records (rather than one serialized list) are what make the
// conditional write below possible.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, inv *Invite) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode invite")
	}
	ok, err := s.client.SetNX(ctx, inviteKeyPrefix+inv.Code, data, 0).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store invite")
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, "invite code already exists")
	}
	if err := s.client.SAdd(ctx, inviteIndexKey, inv.Code).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "index invite")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*Invite, error) {
	data, err := s.client.Get(ctx, inviteKeyPrefix+code).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load invite")
	}
	var inv Invite
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed invite record")
	}
	return &inv, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Invite, error) {
	codes, err := s.client.SMembers(ctx, inviteIndexKey).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list invites")
	}
	sort.Strings(codes)
	out := make([]*Invite, 0, len(codes))
	for _, code := range codes {
		inv, err := s.Get(ctx, code)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// Redeem runs an optimistic-concurrency conditional write: WATCH the code's
// key, re-read and re-check under the watch, then commit the increment in a
// transaction. A concurrent write to the key aborts the transaction and the
// whole sequence retries, so `used` can never exceed `limit`.
func (s *RedisStore) Redeem(ctx context.Context, code, tenantID, skuName string, now time.Time) (*Invite, error) {
	key := inviteKeyPrefix + code

	for attempt := 0; attempt < redeemRetries; attempt++ {
		var redeemed *Invite
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, goredis.Nil) {
				return errNotFound
			}
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "load invite")
			}
			var inv Invite
			if err := json.Unmarshal(data, &inv); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "malformed invite record")
			}
			if err := checkRedeemable(&inv, tenantID, skuName); err != nil {
				return err
			}

			inv.Used++
			ts := now
			inv.UsedAt = &ts
			next, err := json.Marshal(&inv)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "encode invite")
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			if err != nil {
				return err
			}
			redeemed = &inv
			return nil
		}, key)

		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return redeemed, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "invite redemption contention, try again")
}

func (s *RedisStore) Delete(ctx context.Context, codes []string) error {
	for _, code := range codes {
		if err := s.client.Del(ctx, inviteKeyPrefix+code).Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete invite")
		}
		if err := s.client.SRem(ctx, inviteIndexKey, code).Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "unindex invite")
		}
	}
	return nil
}

// InMemoryStore serializes redemption behind a mutex; it backs tests and
// single-process runs without Redis.
type InMemoryStore struct {
	mu      sync.Mutex
	invites map[string]*Invite
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{invites: make(map[string]*Invite)}
}

func (s *InMemoryStore) Create(_ context.Context, inv *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invites[inv.Code]; exists {
		return dErrors.New(dErrors.CodeConflict, "invite code already exists")
	}
	cp := *inv
	s.invites[inv.Code] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, code string) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[code]
	if !ok {
		return nil, errNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.invites))
	for code := range s.invites {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]*Invite, 0, len(codes))
	for _, code := range codes {
		cp := *s.invites[code]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) Redeem(_ context.Context, code, tenantID, skuName string, now time.Time) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[code]
	if !ok {
		return nil, errNotFound
	}
	if err := checkRedeemable(inv, tenantID, skuName); err != nil {
		return nil, err
	}
	inv.Used++
	ts := now
	inv.UsedAt = &ts
	cp := *inv
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, code := range codes {
		delete(s.invites, code)
	}
	return nil
}
