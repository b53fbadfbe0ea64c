package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	platformredis "provisio/internal/platform/redis"
	dErrors "provisio/pkg/domain-errors"
)

const settingsKey = "settings"

func isNotFound(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound)
}

// RedisStore keeps the settings record as one JSON document.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context) (*Settings, error) {
	data, err := s.client.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "settings not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load settings")
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "malformed settings record")
	}
	return &out, nil
}

func (s *RedisStore) Put(ctx context.Context, next *Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode settings")
	}
	if err := s.client.Set(ctx, settingsKey, data, 0).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store settings")
	}
	return nil
}

// InMemoryStore backs tests and single-process runs without Redis.
type InMemoryStore struct {
	mu      sync.RWMutex
	current *Settings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Get(_ context.Context) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "settings not found")
	}
	cp := *s.current
	return &cp, nil
}

func (s *InMemoryStore) Put(_ context.Context, next *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *next
	s.current = &cp
	return nil
}
