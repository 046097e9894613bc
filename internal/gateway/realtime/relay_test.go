package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/metrics"
	"taskflow/pkg/events"
)

func newTestRelay(t *testing.T) (*Relay, *Registry, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	reg := NewRegistry()
	return NewRelay(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), m), reg, m
}

func TestRelayCreatedEventReachesSubscriber(t *testing.T) {
	relay, reg, _ := newTestRelay(t)
	sub := newFake("c1")
	reg.Subscribe("p1", sub)

	payload := `{"taskId":"t1","projectId":"p1","title":"Plan","status":"TODO","occurredAt":"2025-03-01T10:00:00Z"}`
	err := relay.Handle(context.Background(), &consumer.Message{
		Topic:   "task.events",
		Key:     []byte("t1"),
		Value:   []byte(payload),
		Headers: map[string]string{events.HeaderType: events.KindTaskCreated},
	})
	require.NoError(t, err)

	got := sub.received()
	require.Len(t, got, 1)
	var env struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[0]), &env))
	assert.Equal(t, events.KindTaskCreated, env.Type)
	assert.JSONEq(t, payload, string(env.Event))
}

func TestRelayGenericEventUsesTypeField(t *testing.T) {
	relay, reg, m := newTestRelay(t)
	sub := newFake("c1")
	reg.Subscribe("p7", sub)

	require.NoError(t, relay.Handle(context.Background(), &consumer.Message{
		Value: []byte(`{"@type":"task.deleted","projectId":"p7","taskId":"t9"}`),
	}))

	require.Len(t, sub.received(), 1)
	assert.Contains(t, sub.received()[0], `"type":"task.deleted"`)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsConsumed.WithLabelValues("relay", "task.deleted")))
}

func TestRelayRoutesNumericProjectID(t *testing.T) {
	relay, reg, _ := newTestRelay(t)
	sub := newFake("c1")
	reg.Subscribe("42", sub)

	payload := `{"@type":"task.moved","projectId":42}`
	require.NoError(t, relay.Handle(context.Background(), &consumer.Message{Value: []byte(payload)}))

	got := sub.received()
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"type":"task.moved","event":`+payload+`}`, got[0])
}

func TestRelayDropsUnroutable(t *testing.T) {
	relay, reg, m := newTestRelay(t)
	sub := newFake("c1")
	reg.Subscribe("p1", sub)

	for _, v := range []string{`{"taskId":"t1"}`, `garbage`, ``} {
		require.NoError(t, relay.Handle(context.Background(), &consumer.Message{Value: []byte(v)}))
	}

	assert.Empty(t, sub.received())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.EventsDropped.WithLabelValues("relay", "unroutable")))
}

func TestRelayWithoutSubscribersIsNoOp(t *testing.T) {
	relay, _, _ := newTestRelay(t)
	assert.NoError(t, relay.Handle(context.Background(), &consumer.Message{
		Value:   []byte(`{"taskId":"t1","projectId":"nobody"}`),
		Headers: map[string]string{events.HeaderType: events.KindTaskUpdated},
	}))
}
