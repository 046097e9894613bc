package models

import (
	"strings"
	"time"
	"unicode/utf8"

	dErrors "taskflow/pkg/domain-errors"
	pstrings "taskflow/pkg/platform/strings"
)

const (
	MaxTitleLength       = 140
	MaxDescriptionLength = 4000
)

// Status is the workflow position of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusTodo, StatusInProgress, StatusDone:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be one of TODO, IN_PROGRESS, DONE")
}

// Task is a unit of work inside a project.
//
// Invariants:
//   - ProjectID never changes after creation
//   - Title is non-blank and at most 140 characters
//   - Description is at most 4000 characters
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Labels      []string  `json:"labels"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	ProjectID   string   `json:"projectId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

// Normalize trims input before validation.
func (r *CreateTaskRequest) Normalize() {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Title = strings.TrimSpace(r.Title)
	r.Labels = pstrings.DedupeAndTrim(r.Labels)
}

// Validate checks required fields and lengths.
func (r *CreateTaskRequest) Validate() error {
	if r.ProjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "projectId is required")
	}
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	return validateDescription(r.Description)
}

// UpdateTaskRequest is the body of PUT and PATCH /tasks/{id}. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Labels      *[]string `json:"labels"`
}

// Apply validates the request and mutates t. It returns without changes on error.
func (r *UpdateTaskRequest) Apply(t *Task, now time.Time) error {
	next := *t
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		next.Title = title
	}
	if r.Description != nil {
		if err := validateDescription(*r.Description); err != nil {
			return err
		}
		next.Description = *r.Description
	}
	if r.Status != nil {
		st, err := ParseStatus(*r.Status)
		if err != nil {
			return err
		}
		next.Status = st
	}
	if r.Labels != nil {
		next.Labels = pstrings.DedupeAndTrim(*r.Labels)
		if next.Labels == nil {
			next.Labels = []string{}
		}
	}
	next.UpdatedAt = now
	*t = next
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title must be at most 140 characters")
	}
	return nil
}

func validateDescription(d string) error {
	if utf8.RuneCountInString(d) > MaxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description must be at most 4000 characters")
	}
	return nil
}
