//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisCacheRoundTrip(t *testing.T) {
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := Dial(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "routine:u1:2025-06-10")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "routine:u1:2025-06-10", []byte(`{"id":"r1"}`), time.Minute))
	val, ok, err := c.Get(ctx, "routine:u1:2025-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"id":"r1"}`, string(val))

	require.NoError(t, c.Delete(ctx, "routine:u1:2025-06-10"))
	_, ok, err = c.Get(ctx, "routine:u1:2025-06-10")
	require.NoError(t, err)
	require.False(t, ok)
}
