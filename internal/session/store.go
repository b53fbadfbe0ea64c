package session

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "provisio/internal/platform/redis"
	dErrors "provisio/pkg/domain-errors"
)

const (
	sessionKeyPrefix = "session:"
	adminHashKey     = "install:admin"
)

// Store persists the admin credential and the set of live session ids.
type Store interface {
	// SetPasswordHash records the admin credential exactly once; a second
	// call fails with a conflict.
	SetPasswordHash(ctx context.Context, hash string) error
	GetPasswordHash(ctx context.Context) (string, error)

	PutSession(ctx context.Context, id string, ttl time.Duration) error
	SessionExists(ctx context.Context, id string) (bool, error)
	DeleteSession(ctx context.Context, id string) error
}

type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetPasswordHash(ctx context.Context, hash string) error {
	ok, err := s.client.SetNX(ctx, adminHashKey, hash, 0).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store admin credential")
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, "already installed")
	}
	return nil
}

func (s *RedisStore) GetPasswordHash(ctx context.Context) (string, error) {
	hash, err := s.client.Get(ctx, adminHashKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", dErrors.New(dErrors.CodeNotFound, "admin credential not set")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load admin credential")
	}
	return hash, nil
}

func (s *RedisStore) PutSession(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKeyPrefix+id, "1", ttl).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store session")
	}
	return nil
}

func (s *RedisStore) SessionExists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check session")
	}
	return n > 0, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete session")
	}
	return nil
}

// InMemoryStore backs tests and single-process runs without Redis.
type InMemoryStore struct {
	mu       sync.RWMutex
	hash     string
	sessions map[string]time.Time
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *InMemoryStore) SetPasswordHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hash != "" {
		return dErrors.New(dErrors.CodeConflict, "already installed")
	}
	s.hash = hash
	return nil
}

func (s *InMemoryStore) GetPasswordHash(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hash == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "admin credential not set")
	}
	return s.hash, nil
}

func (s *InMemoryStore) PutSession(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = s.now().Add(ttl)
	return nil
}

func (s *InMemoryStore) SessionExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.sessions[id]
	return ok && s.now().Before(expiry), nil
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
