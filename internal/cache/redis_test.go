package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupRedis(t *testing.T) *RedisClient {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	addr, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	c, err := NewRedisClient(addr, "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLock(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "checkout:u1", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "checkout:u1", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// чужое значение не снимает блокировку
	require.NoError(t, c.ReleaseLock(ctx, "checkout:u1", "b"))
	ok, err = c.AcquireLock(ctx, "checkout:u1", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "checkout:u1", "a"))
	ok, err = c.AcquireLock(ctx, "checkout:u1", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "webhook:stripe:pi_1", "a", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := c.AcquireLock(ctx, "webhook:stripe:pi_1", "b", time.Minute)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRedisPingAfterClose(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(ctx))
}
