// Package publisher emits task domain events to the bus.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskflow/internal/platform/metrics"
	"taskflow/pkg/events"
	request "taskflow/pkg/platform/middleware/request"
	"taskflow/pkg/requestcontext"
)

// Producer sends one keyed record.
type Producer interface {
	Publish(ctx context.Context, key string, headers map[string]string, value []byte) error
}

// Publisher writes TaskCreated and TaskUpdated keyed by task id, so every
// event for a task keeps its order on one partition.
type Publisher struct {
	producer Producer
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New creates a publisher. m may be nil.
func New(producer Producer, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		metrics:  m,
		tracer:   otel.Tracer("taskflow/task/publisher"),
	}
}

// PublishCreated emits task.created.
func (p *Publisher) PublishCreated(ctx context.Context, ev events.TaskCreated) error {
	return p.publish(ctx, events.KindTaskCreated, events.Task(ev))
}

// PublishUpdated emits task.updated.
func (p *Publisher) PublishUpdated(ctx context.Context, ev events.TaskUpdated) error {
	return p.publish(ctx, events.KindTaskUpdated, events.Task(ev))
}

func (p *Publisher) publish(ctx context.Context, kind string, body events.Task) error {
	ctx, span := p.tracer.Start(ctx, "task.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("taskflow.event.type", kind),
			attribute.String("taskflow.task_id", body.TaskID),
		),
	)
	defer span.End()

	value, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	headers := map[string]string{events.HeaderType: kind}
	if id := requestcontext.RequestID(ctx); id != "" {
		headers[request.HeaderCorrelationID] = id
	}

	err = p.producer.Publish(ctx, body.TaskID, headers, value)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
	}
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(kind, outcome).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}
