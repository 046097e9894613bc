// Package store persists activities in memory or in Postgres.
package store

import (
	"context"
	"sort"
	"sync"

	"taskflow/internal/activity/models"
)

// DefaultLimit caps list results when the caller passes no limit.
const DefaultLimit = 500

// InMemory keeps activities in insertion order.
type InMemory struct {
	mu      sync.RWMutex
	items   []models.Activity
	byEvent map[string]struct{}
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{byEvent: make(map[string]struct{})}
}

// Append stores a, ignoring a repeat of an EventID already seen.
func (s *InMemory) Append(_ context.Context, a *models.Activity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.EventID != "" {
		if _, dup := s.byEvent[a.EventID]; dup {
			return false, nil
		}
		s.byEvent[a.EventID] = struct{}{}
	}
	s.items = append(s.items, *a)
	return true, nil
}

// ListByProject returns the project's activities newest first.
func (s *InMemory) ListByProject(_ context.Context, projectID string, limit int) ([]models.Activity, error) {
	return s.list(func(a models.Activity) bool { return a.ProjectID == projectID }, limit), nil
}

// List returns all activities newest first.
func (s *InMemory) List(_ context.Context, limit int) ([]models.Activity, error) {
	return s.list(func(models.Activity) bool { return true }, limit), nil
}

func (s *InMemory) list(keep func(models.Activity) bool, limit int) []models.Activity {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s.mu.RLock()
	out := make([]models.Activity, 0)
	for _, a := range s.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
