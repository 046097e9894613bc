package consumer

//go:generate mockgen -source=recorder.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taskflow/internal/activity/consumer/mocks"
	"taskflow/internal/activity/models"
	"taskflow/internal/activity/store"
	kafka "taskflow/internal/platform/kafka/consumer"
	"taskflow/internal/platform/metrics"
	"taskflow/pkg/events"
)

type RecorderSuite struct {
	suite.Suite
	store    *store.InMemory
	metrics  *metrics.Metrics
	recorder *Recorder
	now      time.Time
	ctx      context.Context
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	s.ctx = context.Background()
	s.recorder = NewRecorder(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
		WithIDGenerator(func() string { return "activity-1" }),
	)
}

func (s *RecorderSuite) recorded() []models.Activity {
	all, err := s.store.List(s.ctx, 0)
	s.Require().NoError(err)
	return all
}

func (s *RecorderSuite) TestTypedEvents() {
	occurred := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.Require().NoError(s.recorder.Handle(s.ctx, &kafka.Message{
		Topic:   "task.events",
		Offset:  3,
		Value:   []byte(`{"taskId":"t1","projectId":"p1","title":"Plan","status":"TODO","occurredAt":"2026-05-01T08:00:00Z"}`),
		Headers: map[string]string{events.HeaderType: events.KindTaskCreated},
	}))
	s.Require().NoError(s.recorder.Handle(s.ctx, &kafka.Message{
		Topic:   "task.events",
		Offset:  4,
		Value:   []byte(`{"taskId":"t1","projectId":"p1","title":"Plan","status":"DONE"}`),
		Headers: map[string]string{events.HeaderSpringType: "com.example.events.TaskUpdated"},
	}))

	got := s.recorded()
	s.Require().Len(got, 2)
	byType := map[string]models.Activity{}
	for _, a := range got {
		byType[a.Type] = a
	}
	created := byType[models.TypeCreated]
	s.Equal("t1", created.TaskID)
	s.Equal("p1", created.ProjectID)
	s.Equal("Plan", created.Title)
	s.Equal("TODO", created.Status)
	s.True(occurred.Equal(created.At))
	s.Equal("task.events/0/3", created.EventID)

	updated := byType[models.TypeUpdated]
	s.Equal("DONE", updated.Status)
	s.True(s.now.Equal(updated.At), "missing occurredAt falls back to the clock")

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.ActivitiesRecorded))
}

func (s *RecorderSuite) TestGenericPayload() {
	s.Require().NoError(s.recorder.Handle(s.ctx, &kafka.Message{
		Topic: "task.events",
		Value: []byte(`{"@type":"task.archived","projectId":"p2","id":"t8","title":"Old"}`),
	}))
	s.Require().NoError(s.recorder.Handle(s.ctx, &kafka.Message{
		Topic:  "task.events",
		Offset: 1,
		Value:  []byte(`{"projectId":"p2","id":42}`),
	}))

	got, err := s.store.ListByProject(s.ctx, "p2", 0)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	types := []string{got[0].Type, got[1].Type}
	s.ElementsMatch([]string{"task.archived", models.TypeGeneric}, types)
	for _, a := range got {
		s.True(s.now.Equal(a.At))
		if a.Type == "task.archived" {
			s.Equal("t8", a.TaskID)
			s.Equal("Old", a.Title)
		}
	}
}

func (s *RecorderSuite) TestUnroutableIsSkipped() {
	for _, v := range []string{`not json`, `{"title":"orphan"}`, `[]`} {
		s.NoError(s.recorder.Handle(s.ctx, &kafka.Message{Topic: "task.events", Value: []byte(v)}))
	}
	s.Empty(s.recorded())
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.EventsDropped.WithLabelValues("activity", "unroutable")))
}

func (s *RecorderSuite) TestRedeliveryRecordsOnce() {
	msg := &kafka.Message{
		Topic:     "task.events",
		Partition: 2,
		Offset:    9,
		Value:     []byte(`{"taskId":"t1","projectId":"p1","title":"Plan","status":"TODO"}`),
		Headers:   map[string]string{events.HeaderType: events.KindTaskCreated},
	}
	s.Require().NoError(s.recorder.Handle(s.ctx, msg))
	s.Require().NoError(s.recorder.Handle(s.ctx, msg))

	s.Len(s.recorded(), 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ActivitiesRecorded))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.EventsConsumed.WithLabelValues("activity", events.KindTaskCreated)))
}

func (s *RecorderSuite) TestStoreFailureIsReturnedForRetry() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockStore(ctrl)
	boom := errors.New("connection reset")
	failing.EXPECT().Append(gomock.Any(), gomock.Any()).Return(false, boom)

	r := NewRecorder(failing, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := r.Handle(s.ctx, &kafka.Message{
		Value:   []byte(`{"taskId":"t1","projectId":"p1"}`),
		Headers: map[string]string{events.HeaderType: events.KindTaskUpdated},
	})
	s.ErrorIs(err, boom)
}
