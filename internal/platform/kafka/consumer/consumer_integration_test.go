//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskflow/internal/platform/kafka/admin"
	"taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/kafka/producer"
	"taskflow/pkg/testutil/containers"
)

func TestPublishedRecordReachesHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const topic = "consumer-roundtrip"
	require.NoError(t, admin.EnsureTopic(ctx, rp.Brokers, topic, 1, 1))

	got := make(chan *consumer.Message, 1)
	c, err := consumer.New(consumer.Config{Brokers: rp.Brokers, GroupID: "roundtrip", Topics: []string{topic}},
		consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
			select {
			case got <- msg:
			default:
			}
			return nil
		}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	p, err := producer.New(rp.Brokers, topic)
	require.NoError(t, err)
	defer p.Close()

	// The consumer starts at the log end, so keep publishing until it has joined.
	deadline := time.After(45 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, p.Publish(ctx, "t1", map[string]string{"event-type": "task.created"}, []byte(`{"projectId":"p1"}`)))
		select {
		case msg := <-got:
			require.Equal(t, "t1", string(msg.Key))
			require.Equal(t, "task.created", msg.Headers["event-type"])
			stop()
			require.NoError(t, <-done)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no record delivered")
		}
	}
}
