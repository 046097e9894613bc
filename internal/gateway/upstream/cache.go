package upstream

import (
	"context"
	"log/slog"
	"time"

	"taskflow/internal/gateway/authz"
)

// Cache is the string cache used to remember task → project bindings.
// *redis.Client from internal/platform/redis satisfies it.
type Cache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

const cacheKeyPrefix = "taskflow:task-project:"

// CachedLookup answers from Cache before asking next. A task never moves
// between projects, so a cached binding only expires to bound memory.
type CachedLookup struct {
	next   authz.ProjectLookup
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLookup fronts next with cache. A nil cache disables caching.
func NewCachedLookup(next authz.ProjectLookup, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl, logger: logger}
}

// ProjectIDForTask implements authz.ProjectLookup. Cache errors fall
// through to next; lookup failures are never cached.
func (l *CachedLookup) ProjectIDForTask(ctx context.Context, taskID string) (string, error) {
	if l.cache == nil {
		return l.next.ProjectIDForTask(ctx, taskID)
	}
	key := cacheKeyPrefix + taskID
	if projectID, ok, err := l.cache.GetString(ctx, key); err != nil {
		l.logger.WarnContext(ctx, "task project cache read failed", "task_id", taskID, "error", err)
	} else if ok {
		return projectID, nil
	}

	projectID, err := l.next.ProjectIDForTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	if err := l.cache.SetString(ctx, key, projectID, l.ttl); err != nil {
		l.logger.WarnContext(ctx, "task project cache write failed", "task_id", taskID, "error", err)
	}
	return projectID, nil
}
