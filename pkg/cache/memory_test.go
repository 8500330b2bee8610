package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, mc.Set(ctx, "ttl", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, mc.Set(ctx, "forever", "plain", 0))

	var got map[string]int
	require.NoError(t, mc.Get(ctx, "ttl", &got))
	assert.Equal(t, 1, got["a"])

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, mc.Get(ctx, "ttl", &got), ErrCacheMiss)

	var s string
	require.NoError(t, mc.Get(ctx, "forever", &s))
	assert.Equal(t, "plain", s)

	ok, err := mc.Exists(ctx, "ttl", "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "forever"))
	ok, _ = mc.Exists(ctx, "forever")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	now = now.Add(time.Second)

	var v string
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, "1", v)
}
