package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestTiered(t *testing.T, withRedis bool, config TieredCacheConfig) (*TieredCache, *miniredis.Miniredis) {
	t.Helper()

	var l2 *RedisCache
	var mr *miniredis.Miniredis
	if withRedis {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		l2 = NewRedisCacheFromClient(client)
	}

	tc := NewTieredCache(l2, config, nil)
	t.Cleanup(func() { _ = tc.Close() })
	return tc, mr
}

func TestTieredCache_SetThenGet_L1Only(t *testing.T) {
	tc, _ := newTestTiered(t, false, TieredCacheConfig{})
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "k", payload{Name: "pneumonia", Score: 3}))

	var got payload
	found, err := tc.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "pneumonia", Score: 3}, got)

	stats := tc.Stats()
	assert.Equal(t, int64(1), stats.L1Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestTieredCache_MissWithoutRedis(t *testing.T) {
	tc, _ := newTestTiered(t, false, TieredCacheConfig{})

	var got payload
	found, err := tc.Get(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(1), tc.Stats().L1Misses)
}

func TestTieredCache_L2PromotionToL1(t *testing.T) {
	tc, _ := newTestTiered(t, true, TieredCacheConfig{})
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "k", payload{Name: "appendicitis"}))

	// Drop the L1 copy; the next read must come from redis and repopulate L1.
	tc.l1.Delete("k")

	var got payload
	found, err := tc.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "appendicitis", got.Name)
	assert.Equal(t, int64(1), tc.Stats().L2Hits)

	// Promoted: the following read hits L1.
	found, err = tc.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), tc.Stats().L1Hits)
}

func TestTieredCache_L1Expiry(t *testing.T) {
	tc, _ := newTestTiered(t, false, TieredCacheConfig{
		L1TTL:             10 * time.Millisecond,
		L1CleanupInterval: time.Hour, // lazy eviction only
	})
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "k", payload{Name: "x"}))
	time.Sleep(20 * time.Millisecond)

	var got payload
	found, err := tc.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTieredCache_RedisDownDegradesGracefully(t *testing.T) {
	tc, mr := newTestTiered(t, true, TieredCacheConfig{})
	ctx := context.Background()

	mr.Close()

	// Writes still land in L1 and reads still work.
	require.NoError(t, tc.Set(ctx, "k", payload{Name: "y"}))

	var got payload
	found, err := tc.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "y", got.Name)
	assert.Greater(t, tc.Stats().L2Errors, int64(0))
}

func TestMemoryCache_JanitorEvictsExpired(t *testing.T) {
	m := NewMemoryCache(5 * time.Millisecond)
	defer m.Close()

	m.Set("k", []byte("v"), time.Millisecond)
	assert.Eventually(t, func() bool { return m.Len() == 0 },
		500*time.Millisecond, 5*time.Millisecond)
}
