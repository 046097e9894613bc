package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"taskflow/internal/task/models"
	"taskflow/pkg/platform/sentinel"
)

// Schema creates the tasks table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	title       VARCHAR(140) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	labels      TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_project_id_idx ON tasks (project_id);
`

const uniqueViolation = "23505"

// Postgres persists tasks with lib/pq.
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
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, t *models.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, labels, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), pq.Array(labelsOrEmpty(t.Labels)), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var (
		t      models.Task
		status string
		labels pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, labels, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &labels, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	t.Status = models.Status(status)
	t.Labels = labelsOrEmpty(labels)
	return &t, nil
}

// Update rewrites the mutable columns. project_id and created_at are never touched.
func (s *Postgres) Update(ctx context.Context, t *models.Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, labels = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.Title, t.Description, string(t.Status), pq.Array(labelsOrEmpty(t.Labels)), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
