// Package oauthstate issues and consumes the single-use state nonces that tie an OAuth
// callback to the login redirect that started it.
package oauthstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"example.com/stravasync/internal/domain"
)

// DefaultTTL bounds how long a user may take to approve the authorization.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "stravasync:oauth_state:"

// Store issues nonces and consumes them at most once.
type Store interface {
	Issue(ctx context.Context) (string, error)
	// Consume returns domain.ErrInvalidState for unknown, expired or reused nonces.
	Consume(ctx context.Context, state string) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// RedisStore keeps nonces in Redis so any API replica can complete the callback.
type RedisStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(rdb goredis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.rdb.Set(ctx, keyPrefix+state, time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

func (s *RedisStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return domain.ErrInvalidState
	}
	err := s.rdb.GetDel(ctx, keyPrefix+state).Err()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrInvalidState
	}
	return err
}

// MemoryStore is the single-process fallback used when no Redis URL is configured.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, states: make(map[string]time.Time)}
}

func (s *MemoryStore) Issue(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, expiry := range s.states {
		if !now.Before(expiry) {
			delete(s.states, k)
		}
	}
	state := uuid.NewString()
	s.states[state] = now.Add(s.ttl)
	return state, nil
}

func (s *MemoryStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.states[state]
	if !ok {
		return domain.ErrInvalidState
	}
	delete(s.states, state)
	if !s.now().Before(expiry) {
		return domain.ErrInvalidState
	}
	return nil
}
