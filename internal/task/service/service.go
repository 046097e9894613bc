package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/task/models"
	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/events"
	"taskflow/pkg/platform/sentinel"
	"taskflow/pkg/requestcontext"
)

// Store persists tasks.
type Store interface {
	Create(ctx context.Context, t *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
}

// EventPublisher emits task domain events.
type EventPublisher interface {
	PublishCreated(ctx context.Context, ev events.TaskCreated) error
	PublishUpdated(ctx context.Context, ev events.TaskUpdated) error
}

// Service owns task CRUD and event emission.
type Service struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New constructs a Service.
func New(store Store, publisher EventPublisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("task store is required")
	}
	if publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates, persists, and announces a new task. New tasks start in TODO.
func (s *Service) Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	labels := req.Labels
	if labels == nil {
		labels = []string{}
	}
	t := &models.Task{
		ID:          s.newID(),
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.StatusTodo,
		Labels:      labels,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "task already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create task")
	}

	s.announce(ctx, t, s.publisher.PublishCreated(ctx, events.TaskCreated(snapshot(t, t.CreatedAt))))
	return t, nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "task not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load task")
	}
	return t, nil
}

// Update applies the non-nil fields of req and announces the change. PUT
// and PATCH share these semantics.
func (s *Service) Update(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(t, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "task not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update task")
	}

	s.announce(ctx, t, s.publisher.PublishUpdated(ctx, events.TaskUpdated(snapshot(t, t.UpdatedAt))))
	return t, nil
}

// announce logs the publish outcome. The write already succeeded, so a
// failed publish does not fail the request.
func (s *Service) announce(ctx context.Context, t *models.Task, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish task event",
			"task_id", t.ID,
			"project_id", t.ProjectID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "task event published",
		"task_id", t.ID,
		"project_id", t.ProjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func snapshot(t *models.Task, at time.Time) events.Task {
	return events.Task{
		TaskID:     t.ID,
		ProjectID:  t.ProjectID,
		Title:      t.Title,
		Status:     string(t.Status),
		OccurredAt: at,
		Labels:     t.Labels,
	}
}
