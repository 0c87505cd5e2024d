//go:build integration

package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-pos/internal/logger"
)

// TestRedisIntegration runs the lock against a real Redis container.
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := Connect(ctx, host+":"+port.Port())
	require.NoError(t, err)
	defer client.Close()

	r := NewRedis(client, time.Minute, logger.NewConsoleLogger(io.Discard))
	keys := []string{TableKey("t1"), OrderKey("o1")}

	locked, err := r.LockAll(ctx, keys, "call-1")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = r.LockAll(ctx, keys, "call-2")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, r.UnlockAll(ctx, keys, "call-1"))
	held, err := r.IsLocked(ctx, TableKey("t1"))
	require.NoError(t, err)
	assert.False(t, held)
}
