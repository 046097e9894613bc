package store

import (
	"context"
	"database/sql"
	"fmt"

	"taskflow/internal/activity/models"
)

// Schema creates the activities table. event_id makes appends idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS activities (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL UNIQUE,
	task_id    TEXT NOT NULL DEFAULT '',
	project_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS activities_project_at_idx ON activities (project_id, at DESC);
`

// Postgres persists activities with lib/pq.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies Schema.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate activities: %w", err)
	}
	return nil
}

// Append inserts a unless its event_id is already stored. It reports whether a row was written.
func (s *Postgres) Append(ctx context.Context, a *models.Activity) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, event_id, task_id, project_id, type, title, status, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`, a.ID, a.EventID, a.TaskID, a.ProjectID, a.Type, a.Title, a.Status, a.At)
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	return n > 0, nil
}

// ListByProject returns the project's activities newest first.
func (s *Postgres) ListByProject(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	return s.query(ctx, `
		SELECT id, event_id, task_id, project_id, type, title, status, at
		FROM activities WHERE project_id = $1
		ORDER BY at DESC LIMIT $2
	`, projectID, normalizeLimit(limit))
}

// List returns all activities newest first.
func (s *Postgres) List(ctx context.Context, limit int) ([]models.Activity, error) {
	return s.query(ctx, `
		SELECT id, event_id, task_id, project_id, type, title, status, at
		FROM activities ORDER BY at DESC LIMIT $1
	`, normalizeLimit(limit))
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.EventID, &a.TaskID, &a.ProjectID, &a.Type, &a.Title, &a.Status, &a.At); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
