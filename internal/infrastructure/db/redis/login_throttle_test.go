package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := Connect(ctx, Config{Addr: endpoint})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLoginThrottle_LocksAfterMaxFailures(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := throttle.Allowed(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d should be allowed", i+1)
		require.NoError(t, throttle.RecordFailure(ctx, "alice"))
	}

	ok, err := throttle.Allowed(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	ttl, err := client.TTL(ctx, "login:failures:alice").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, throttle.Reset(ctx, "alice"))
	ok, err = throttle.Allowed(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoginThrottle_WindowExpires(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 1, time.Second)

	require.NoError(t, throttle.RecordFailure(ctx, "bob"))
	ok, err := throttle.Allowed(ctx, "bob")
	require.NoError(t, err)
	require.False(t, ok)

	require.Eventually(t, func() bool {
		ok, err := throttle.Allowed(ctx, "bob")
		return err == nil && ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNewLoginThrottle_Defaults(t *testing.T) {
	throttle := NewLoginThrottle(nil, 0, 0)
	require.EqualValues(t, defaultMaxFailures, throttle.maxFailures)
	require.Equal(t, defaultLockout, throttle.lockout)
	require.Equal(t, "login:failures:Carol", throttle.key("Carol"))
}

func TestLoginThrottle_CaseDistinctAccountsHaveSeparateCounters(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 3, time.Minute)

	// Successful logins to "alice" must not clear failures recorded against "Alice".
	for i := 0; i < 6; i++ {
		require.NoError(t, throttle.RecordFailure(ctx, "Alice"))
		if i%2 == 1 {
			require.NoError(t, throttle.Reset(ctx, "alice"))
		}
	}

	ok, err := throttle.Allowed(ctx, "Alice")
	require.NoError(t, err)
	require.False(t, ok, "Alice should be locked after 6 failures with max=3")

	ok, err = throttle.Allowed(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoginThrottle_CounterWithoutTTLGetsWindow(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 2, time.Minute)

	// A counter that lost its expiry, e.g. after a crash between INCR and EXPIRE.
	key := throttle.key("erin")
	require.NoError(t, client.Set(ctx, key, 5, 0).Err())
	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Equal(t, time.Duration(-1), ttl)

	require.NoError(t, throttle.RecordFailure(ctx, "erin"))

	ttl, err = client.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	n, err := client.Get(ctx, key).Int64()
	require.NoError(t, err)
	require.EqualValues(t, 6, n)
}

func TestLoginThrottle_LaterFailuresDoNotExtendWindow(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 5, 2*time.Second)

	require.NoError(t, throttle.RecordFailure(ctx, "frank"))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, throttle.RecordFailure(ctx, "frank"))

	ttl, err := client.PTTL(ctx, throttle.key("frank")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.Less(t, ttl, 1500*time.Millisecond)
}
