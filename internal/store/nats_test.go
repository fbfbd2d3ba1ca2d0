package store

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server with JetStream.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func newTestNATSBackend(t *testing.T) *NATS {
	t.Helper()
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := NewNATS(ctx, nc, "nudge_test")
	require.NoError(t, err)
	return b
}

func TestNATSBackend(t *testing.T) {
	runBackendConformance(t, newTestNATSBackend(t))
}

func TestNATSBackendSharedBucket(t *testing.T) {
	server := startTestNATSServer(t)
	ctx := context.Background()

	nc1, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc1.Close()
	nc2, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc2.Close()

	a, err := NewNATS(ctx, nc1, "shared")
	require.NoError(t, err)
	b, err := NewNATS(ctx, nc2, "shared")
	require.NoError(t, err)

	v, err := a.Save(ctx, sampleReminders(), "")
	require.NoError(t, err)

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, v, snap.Version)
	assert.Len(t, snap.Reminders, 3)
}
