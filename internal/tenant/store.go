package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	platformredis "provisio/internal/platform/redis"
	dErrors "provisio/pkg/domain-errors"
)

// Store persists tenant records in the shared key-value store.
type Store interface {
	// Create fails with CodeConflict when the id is already taken.
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	// Put overwrites an existing record; CodeNotFound when absent.
	Put(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id string) error
}

const (
	tenantKeyPrefix = "tenant:"
	tenantIndexKey  = "tenants"
)

// RedisStore keeps each tenant as one JSON document plus an id index set.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, t *Tenant) error {
	data, err := json.Marshal(t)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode tenant")
	}
	ok, err := s.client.SetNX(ctx, tenantKeyPrefix+t.ID, data, 0).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store tenant")
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, "tenant id already exists")
	}
	if err := s.client.SAdd(ctx, tenantIndexKey, t.ID).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "index tenant")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Tenant, error) {
	data, err := s.client.Get(ctx, tenantKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load tenant")
	}
	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "malformed tenant record")
	}
	return &t, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Tenant, error) {
	ids, err := s.client.SMembers(ctx, tenantIndexKey).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tenants")
	}
	sort.Strings(ids)
	out := make([]*Tenant, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			// Index entry without a record: a concurrent delete won the race.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) Put(ctx context.Context, t *Tenant) error {
	data, err := json.Marshal(t)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode tenant")
	}
	ok, err := s.client.SetXX(ctx, tenantKeyPrefix+t.ID, data, 0).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store tenant")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, tenantKeyPrefix+id).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete tenant")
	}
	if err := s.client.SRem(ctx, tenantIndexKey, id).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "unindex tenant")
	}
	return nil
}

// InMemoryStore backs tests and single-process runs without Redis.
type InMemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tenants: make(map[string]*Tenant)}
}

func (s *InMemoryStore) Create(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "tenant id already exists")
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Tenant, 0, len(ids))
	for _, id := range ids {
		cp := *s.tenants[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) Put(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, id)
	return nil
}
