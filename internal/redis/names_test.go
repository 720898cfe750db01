package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/creator-xp/internal/domain"
)

func TestNameKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "member:123:name", nameKey("123"))
}

func TestNameCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cache := NewNameCacheFromClient(client, time.Minute, log)
	t.Cleanup(func() { _ = cache.Close() })

	_, err = cache.DisplayName(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	require.NoError(t, cache.SetDisplayName(ctx, "u1", "Ann"))
	name, err := cache.DisplayName(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ann", name)

	ttl, err := client.TTL(ctx, nameKey("u1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
