package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"taskflow/internal/task/models"
	"taskflow/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newTask(id string) *models.Task {
	now := time.Now().UTC()
	return &models.Task{ID: id, ProjectID: "p1", Title: "Task " + id, Status: models.StatusTodo, Labels: []string{"a"}, CreatedAt: now, UpdatedAt: now}
}

func (s *InMemorySuite) TestCreateAndFind() {
	t := newTask("t1")
	s.Require().NoError(s.store.Create(s.ctx, t))

	got, err := s.store.FindByID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(t, got)

	s.ErrorIs(s.store.Create(s.ctx, t), sentinel.ErrConflict)
	_, err = s.store.FindByID(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestReturnsCopies() {
	t := newTask("t1")
	s.Require().NoError(s.store.Create(s.ctx, t))
	t.Labels[0] = "mutated"

	got, err := s.store.FindByID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal([]string{"a"}, got.Labels)
}

func (s *InMemorySuite) TestUpdate() {
	s.ErrorIs(s.store.Update(s.ctx, newTask("missing")), sentinel.ErrNotFound)

	t := newTask("t1")
	s.Require().NoError(s.store.Create(s.ctx, t))
	t.Status = models.StatusDone
	s.Require().NoError(s.store.Update(s.ctx, t))

	got, err := s.store.FindByID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(models.StatusDone, got.Status)
}
