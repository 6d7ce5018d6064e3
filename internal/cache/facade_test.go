package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTwoTier(t *testing.T) (*TwoTier, *Local, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	remote := NewRedisFromClient(client, "", zap.NewNop())
	require.NoError(t, remote.Connect(context.Background()))

	local := NewLocal(100, time.Minute)

	tt := NewTwoTier(local, remote, zap.NewNop())
	t.Cleanup(func() { tt.Close() })

	return tt, local, remote
}

func TestTwoTier_WriteThenRead(t *testing.T) {
	tt, _, _ := setupTwoTier(t)
	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, true)

	val, ok := tt.Read(ctx, "k", true)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	// Repeated reads with no intervening write return the same value.
	again, ok := tt.Read(ctx, "k", true)
	require.True(t, ok)
	assert.Equal(t, val, again)
}

func TestTwoTier_WriteReachesBothTiers(t *testing.T) {
	tt, local, remote := setupTwoTier(t)
	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, true)

	_, hit, _ := local.Get(ctx, "k")
	assert.True(t, hit, "local tier should hold the entry")
	_, hit, _ = remote.Get(ctx, "k")
	assert.True(t, hit, "distributed tier should hold the entry")
}

func TestTwoTier_LocalOnlyWriteSkipsDistributed(t *testing.T) {
	tt, _, remote := setupTwoTier(t)
	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, false)

	_, hit, _ := remote.Get(ctx, "k")
	assert.False(t, hit)

	_, ok := tt.Read(ctx, "k", false)
	assert.True(t, ok)
}

func TestTwoTier_FallthroughBackfillsLocal(t *testing.T) {
	tt, local, remote := setupTwoTier(t)
	ctx := context.Background()

	// Present only in the distributed tier, as when another instance
	// populated it or this process restarted.
	require.NoError(t, remote.Set(ctx, "k", []byte("v"), time.Hour))

	_, hit, _ := local.Get(ctx, "k")
	require.False(t, hit, "precondition: local tier cold")

	val, ok := tt.Read(ctx, "k", true)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	// Backfill happened; the next local read hits directly.
	got, hit, _ := local.Get(ctx, "k")
	require.True(t, hit, "local tier should be backfilled after distributed hit")
	assert.Equal(t, []byte("v"), got)
}

func TestTwoTier_Invalidate(t *testing.T) {
	tt, local, remote := setupTwoTier(t)
	ctx := context.Background()

	// Seed both tiers with matching and non-matching keys.
	for _, key := range []string{"products:a", "products:b", "other:c"} {
		require.NoError(t, local.Set(ctx, key, []byte("v"), time.Minute))
		require.NoError(t, remote.Set(ctx, key, []byte("v"), time.Minute))
	}

	removed := tt.Invalidate(ctx, "products")
	assert.Equal(t, 4, removed, "two keys from each tier")

	for _, key := range []string{"products:a", "products:b"} {
		_, hit, _ := local.Get(ctx, key)
		assert.False(t, hit, "%s should be gone from local", key)
		_, hit, _ = remote.Get(ctx, key)
		assert.False(t, hit, "%s should be gone from distributed", key)
	}

	_, hit, _ := local.Get(ctx, "other:c")
	assert.True(t, hit)
	_, hit, _ = remote.Get(ctx, "other:c")
	assert.True(t, hit)
}

func TestTwoTier_DegradedDistributed(t *testing.T) {
	local := NewLocal(100, time.Minute)
	remote := NewRedis(RedisConfig{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	}, zap.NewNop())
	require.Error(t, remote.Connect(context.Background()))

	tt := NewTwoTier(local, remote, zap.NewNop())
	t.Cleanup(func() { tt.Close() })

	ctx := context.Background()

	// Local tier keeps working; nothing panics or errors outward.
	tt.Write(ctx, "k", []byte("v"), time.Minute, true)
	val, ok := tt.Read(ctx, "k", true)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	removed := tt.Invalidate(ctx, "k")
	assert.Equal(t, 1, removed, "only the local copy exists")

	assert.Equal(t, "disconnected", tt.Stats().DistributedState)
}

func TestTwoTier_NilRemote(t *testing.T) {
	local := NewLocal(100, time.Minute)
	tt := NewTwoTier(local, nil, zap.NewNop())
	t.Cleanup(func() { tt.Close() })

	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, true)
	_, ok := tt.Read(ctx, "k", true)
	assert.True(t, ok)

	stats := tt.Stats()
	assert.False(t, stats.DistributedEnabled)
	assert.Equal(t, "disabled", stats.DistributedState)
}

func TestTwoTier_FlushAll(t *testing.T) {
	tt, local, remote := setupTwoTier(t)
	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, true)
	tt.FlushAll(ctx)

	_, hit, _ := local.Get(ctx, "k")
	assert.False(t, hit)
	_, hit, _ = remote.Get(ctx, "k")
	assert.False(t, hit)
}

func TestTwoTier_Stats(t *testing.T) {
	tt, _, _ := setupTwoTier(t)
	ctx := context.Background()

	tt.Write(ctx, "k", []byte("v"), time.Minute, true)
	_, _ = tt.Read(ctx, "k", true)
	_, _ = tt.Read(ctx, "absent", true)

	stats := tt.Stats()
	assert.True(t, stats.DistributedEnabled)
	assert.Equal(t, "connected", stats.DistributedState)
	assert.Equal(t, uint64(1), stats.Local.Hits)
	assert.Equal(t, 1, stats.Local.Entries)
}
