package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)

	return rc
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestSetGet_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "cache:test", []byte(`{"count":3}`), 10*time.Second)
	require.NoError(t, err)

	val, found, err := rc.Get(ctx, "cache:test")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"count":3}`), val)
}

func TestGet_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "cache:missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestSet_TTLExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "cache:short", []byte("v"), time.Second))

	time.Sleep(1500 * time.Millisecond)

	_, found, err := rc.Get(ctx, "cache:short")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIncr_MonotonicWithinWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	key := cache.RateLimitKey("ingest", "ak_AB12", time.Now().Unix())
	for want := int64(1); want <= 5; want++ {
		got, err := rc.Incr(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIncrExpire_CounterSelfCleans(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	key := cache.RateLimitKey("read", "ak_AB12", time.Now().Unix())
	count, err := rc.Incr(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.NoError(t, rc.Expire(ctx, key, time.Second))

	time.Sleep(1500 * time.Millisecond)

	// Expired counter restarts from zero.
	count, err = rc.Incr(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "cache:gone", []byte("v"), time.Minute))
	require.NoError(t, rc.Delete(ctx, "cache:gone"))

	_, found, err := rc.Get(ctx, "cache:gone")
	require.NoError(t, err)
	assert.False(t, found)
}
