// Package noncestore keeps one-time wallet login challenges.
package noncestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no live nonce exists for an address.
var ErrNotFound = errors.New("nonce not found or expired")

const keyPrefix = "foodrescue:nonce:"

// RedisStore stores nonces as keys with a TTL. Consume uses GETDEL so a
// nonce can be redeemed once.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, address string) (string, error) {
	nonce := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+address, nonce, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("saving nonce to Redis: %w", err)
	}
	return nonce, nil
}

func (s *RedisStore) Consume(ctx context.Context, address string) (string, error) {
	nonce, err := s.client.GetDel(ctx, keyPrefix+address).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading nonce from Redis: %w", err)
	}
	return nonce, nil
}

type entry struct {
	nonce     string
	expiresAt time.Time
}

// MemoryStore is the single-process fallback used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: map[string]entry{}, now: time.Now}
}

func (s *MemoryStore) Issue(_ context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce := uuid.NewString()
	s.entries[address] = entry{nonce: nonce, expiresAt: s.now().Add(s.ttl)}
	return nonce, nil
}

func (s *MemoryStore) Consume(_ context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[address]
	delete(s.entries, address)
	if !ok || s.now().After(e.expiresAt) {
		return "", ErrNotFound
	}
	return e.nonce, nil
}
