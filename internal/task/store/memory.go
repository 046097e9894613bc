// Package store persists tasks in memory or in Postgres.
package store

import (
	"context"
	"slices"
	"sync"

	"taskflow/internal/task/models"
	"taskflow/pkg/platform/sentinel"
)

// InMemory is a map-backed task store for development and tests.
type InMemory struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[string]*models.Task)}
}

func (s *InMemory) Create(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return sentinel.ErrConflict
	}
	s.tasks[t.ID] = clone(t)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

func (s *InMemory) Update(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.tasks[t.ID] = clone(t)
	return nil
}

func clone(t *models.Task) *models.Task {
	c := *t
	c.Labels = slices.Clone(t.Labels)
	return &c
}
