package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	val, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, store.Delete(ctx, "k"))
	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	ctx := context.Background()
	ms := &memoryStore{entries: make(map[string]*memoryEntry), now: time.Now}

	n, err := ms.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ms.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Advance past the window: the counter restarts.
	base := time.Now()
	ms.now = func() time.Time { return base.Add(2 * time.Minute) }
	n, err = ms.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewRedisClientOptional(t *testing.T) {
	ctx := context.Background()

	// An unset URL means Redis is optional: no client, no error, so the
	// caller can fall back to the in-memory store.
	client, err := NewRedisClient(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = NewRedisClient(ctx, "not-a-redis-url")
	assert.Error(t, err)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	ms := &memoryStore{entries: make(map[string]*memoryEntry), now: func() time.Time { return base }}

	require.NoError(t, ms.Set(ctx, "k", "v", time.Second))
	ms.now = func() time.Time { return base.Add(2 * time.Second) }

	val, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}
