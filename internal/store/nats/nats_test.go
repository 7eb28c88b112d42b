package nats_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natsbus "github.com/gosuda/boardsync/internal/store/nats"
)

func TestClusterSubject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boardsync.cluster", natsbus.ClusterSubject(""))
	assert.Equal(t, "staging.cluster", natsbus.ClusterSubject("staging"))
}

// testConnect connects to NATS or skips the test if BOARDSYNC_TEST_NATS_URL is not set.
func testConnect(t *testing.T, subject string) *natsbus.Bus {
	t.Helper()

	url := os.Getenv("BOARDSYNC_TEST_NATS_URL")
	if url == "" {
		t.Skip("requires BOARDSYNC_TEST_NATS_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := natsbus.Connect(ctx, url, subject, "boardsync-test")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, bus.Close())
	})
	return bus
}

func TestBus_TwoNodes(t *testing.T) {
	subject := natsbus.ClusterSubject("test." + t.Name())
	node1 := testConnect(t, subject)
	node2 := testConnect(t, subject)

	received := make(chan []byte, 2)
	stop, err := node2.Subscribe(context.Background(), func(payload []byte) {
		received <- payload
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, node1.Publish(context.Background(), []byte(`{"node":"n1"}`)))

	select {
	case got := <-received:
		assert.JSONEq(t, `{"node":"n1"}`, string(got))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cluster message")
	}
}

func TestBus_StopEndsDelivery(t *testing.T) {
	bus := testConnect(t, natsbus.ClusterSubject("test."+t.Name()))

	received := make(chan []byte, 4)
	stop, err := bus.Subscribe(context.Background(), func(payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	stop()
	stop()

	require.NoError(t, bus.Publish(context.Background(), []byte(`{}`)))
	select {
	case got := <-received:
		t.Fatalf("unexpected message after stop: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}
