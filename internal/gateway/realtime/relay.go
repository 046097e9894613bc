package realtime

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/metrics"
	"taskflow/pkg/events"
)

// Broadcaster is the part of the Registry the relay needs.
type Broadcaster interface {
	Broadcast(projectID string, payload []byte) int
}

// Relay turns task.events records into websocket envelopes. It implements
// consumer.Handler and never returns an error, so every record is committed.
type Relay struct {
	registry Broadcaster
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewRelay creates a relay that broadcasts into registry.
func NewRelay(registry Broadcaster, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("taskflow/gateway/realtime"),
	}
}

// Handle decodes one record and broadcasts it to the event's project.
func (r *Relay) Handle(ctx context.Context, msg *consumer.Message) error {
	ctx, span := r.tracer.Start(ctx, "realtime.relay",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	ev, err := events.Decode(msg.Headers, msg.Value)
	if err != nil {
		r.drop(ctx, msg, "unroutable", err)
		return nil
	}
	envelope, err := events.MarshalEnvelope(ev)
	if err != nil {
		// Raw was not valid JSON after all.
		r.drop(ctx, msg, "encode", err)
		return nil
	}

	delivered := r.registry.Broadcast(ev.ProjectID, envelope)
	span.SetAttributes(
		attribute.String("taskflow.event.type", ev.Kind),
		attribute.String("taskflow.project_id", ev.ProjectID),
		attribute.Int("taskflow.deliveries", delivered),
	)
	if r.metrics != nil {
		r.metrics.EventsConsumed.WithLabelValues("relay", ev.Kind).Inc()
	}
	r.logger.DebugContext(ctx, "relayed task event",
		"type", ev.Kind,
		"project_id", ev.ProjectID,
		"task_id", ev.TaskID,
		"deliveries", delivered,
	)
	return nil
}

func (r *Relay) drop(ctx context.Context, msg *consumer.Message, reason string, err error) {
	if r.metrics != nil {
		r.metrics.EventsDropped.WithLabelValues("relay", reason).Inc()
	}
	level := slog.LevelDebug
	if !errors.Is(err, events.ErrUnroutable) {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "dropping task event",
		"reason", reason,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"error", err,
	)
}
