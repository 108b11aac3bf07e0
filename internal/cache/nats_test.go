//go:build nats

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEmbeddedNATS runs a JetStream enabled server on a random port.
func startEmbeddedNATS(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready within timeout")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATS_SetGetExpireClear(t *testing.T) {
	ctx := context.Background()
	url := startEmbeddedNATS(t)

	c, err := NewNATS(ctx, url, "parkpulse_test", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "crowd:baseline:2025-06-01:1,2,3", []byte("payload"), time.Hour))
	v, ok, err := c.Get(ctx, "crowd:baseline:2025-06-01:1,2,3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(v))

	now = now.Add(2 * time.Hour)
	_, ok, err = c.Get(ctx, "crowd:baseline:2025-06-01:1,2,3")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire after its ttl")

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Delete(ctx, "a"))
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx), "clearing an empty bucket succeeds")
}
