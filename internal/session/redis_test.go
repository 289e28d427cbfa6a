package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medcase-generator/internal/domain"
)

func setupRedis(t *testing.T) *RedisStore {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
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
		t.Skipf("Redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	store, err := NewRedisStore(domain.SessionConfig{RedisURL: "redis://" + endpoint, PoolSize: 10}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore(t *testing.T) {
	store := setupRedis(t)
	exerciseStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ttl", testDraft(), 30*time.Minute))
	require.NoError(t, store.Update(ctx, "ttl", time.Hour, func(*domain.SessionData) error { return nil }))

	ttl, err := store.client.TTL(ctx, sessionKey("ttl")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Minute)
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.client.Set(ctx, sessionKey("bad"), "{not json", time.Minute).Err())

	_, err := store.Get(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(domain.SessionConfig{RedisURL: "redis://127.0.0.1:1"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "session:abc", sessionKey("abc"))
}
