// Package consumer turns task.events records into activity entries.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/activity/models"
	kafka "taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/metrics"
	"taskflow/pkg/events"
)

// Store is the write side of the activity store.
type Store interface {
	Append(ctx context.Context, a *models.Activity) (bool, error)
}

// Recorder implements kafka.Handler for the activity-service.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation for tests.
func WithIDGenerator(newID func() string) Option {
	return func(r *Recorder) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRecorder creates a recorder writing into store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle records one event. Unroutable payloads are skipped; store failures
// are returned so the consumer retries the record.
func (r *Recorder) Handle(ctx context.Context, msg *kafka.Message) error {
	ev, err := events.Decode(msg.Headers, msg.Value)
	if err != nil {
		if r.metrics != nil {
			r.metrics.EventsDropped.WithLabelValues("activity", "unroutable").Inc()
		}
		r.logger.DebugContext(ctx, "skipping task event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	a := r.fromEvent(ev)
	a.EventID = models.EventID(msg.Topic, msg.Partition, msg.Offset)

	written, err := r.store.Append(ctx, a)
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.EventsConsumed.WithLabelValues("activity", ev.Kind).Inc()
		if written {
			r.metrics.ActivitiesRecorded.Inc()
		}
	}
	if !written {
		r.logger.DebugContext(ctx, "duplicate task event ignored", "event_id", a.EventID)
		return nil
	}
	r.logger.InfoContext(ctx, "activity recorded",
		"type", a.Type,
		"project_id", a.ProjectID,
		"task_id", a.TaskID,
	)
	return nil
}

// genericFields are the optional attributes read from untyped payloads.
type genericFields struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (r *Recorder) fromEvent(ev events.Event) *models.Activity {
	a := &models.Activity{
		ID:        r.newID(),
		TaskID:    ev.TaskID,
		ProjectID: ev.ProjectID,
	}
	if ev.Typed() {
		a.Type = typedActivity(ev.Kind)
		a.Title = ev.Task.Title
		a.Status = ev.Task.Status
		a.At = ev.Task.OccurredAt
		if a.At.IsZero() {
			a.At = r.now()
		}
		return a
	}

	a.Type = ev.Kind
	if a.Type == events.KindGeneric {
		a.Type = models.TypeGeneric
	}
	var f genericFields
	// Fields of the wrong JSON type are left empty.
	_ = json.Unmarshal(ev.Raw, &f)
	if a.TaskID == "" {
		a.TaskID = f.ID
	}
	a.Title = f.Title
	a.Status = f.Status
	a.At = r.now()
	return a
}

func typedActivity(kind string) string {
	switch kind {
	case events.KindTaskCreated:
		return models.TypeCreated
	case events.KindTaskUpdated:
		return models.TypeUpdated
	}
	return kind
}
