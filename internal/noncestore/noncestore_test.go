package noncestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisStoreConsumeOnce(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client, 5*time.Minute)
	ctx := context.Background()

	nonce, err := store.Issue(ctx, "0xabc")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	got, err := store.Consume(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, nonce, got)

	_, err = store.Consume(ctx, "0xabc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	_, err := store.Issue(ctx, "0xabc")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = store.Consume(ctx, "0xabc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreReissueReplaces(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	first, _ := store.Issue(ctx, "0xabc")
	second, _ := store.Issue(ctx, "0xabc")
	assert.NotEqual(t, first, second)

	got, err := store.Consume(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	nonce, err := store.Issue(ctx, "0xabc")
	require.NoError(t, err)
	got, err := store.Consume(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, nonce, got)

	_, err = store.Issue(ctx, "0xabc")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = store.Consume(ctx, "0xabc")
	assert.ErrorIs(t, err, ErrNotFound)
}
