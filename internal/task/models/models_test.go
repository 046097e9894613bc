package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "taskflow/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

func TestCreateTaskRequestValidate(t *testing.T) {
	valid := CreateTaskRequest{ProjectID: " p1 ", Title: "  Ship it ", Labels: []string{"a", " a", ""}}
	valid.Normalize()
	require.NoError(t, valid.Validate())
	assert.Equal(t, "p1", valid.ProjectID)
	assert.Equal(t, "Ship it", valid.Title)
	assert.Equal(t, []string{"a"}, valid.Labels)

	cases := map[string]CreateTaskRequest{
		"missing project":  {Title: "x"},
		"missing title":    {ProjectID: "p1"},
		"title too long":   {ProjectID: "p1", Title: strings.Repeat("x", MaxTitleLength+1)},
		"description long": {ProjectID: "p1", Title: "x", Description: strings.Repeat("d", MaxDescriptionLength+1)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
		})
	}
}

func TestUpdateTaskRequestApply(t *testing.T) {
	created := time.Unix(1_700_000_000, 0).UTC()
	base := Task{ID: "t1", ProjectID: "p1", Title: "Old", Status: StatusTodo, Labels: []string{"x"}, CreatedAt: created, UpdatedAt: created}
	now := created.Add(time.Minute)

	t.Run("partial update", func(t *testing.T) {
		task := base
		req := UpdateTaskRequest{Status: ptr("in_progress")}
		require.NoError(t, req.Apply(&task, now))
		assert.Equal(t, StatusInProgress, task.Status)
		assert.Equal(t, "Old", task.Title)
		assert.Equal(t, now, task.UpdatedAt)
		assert.Equal(t, "p1", task.ProjectID)
	})

	t.Run("clearing labels", func(t *testing.T) {
		task := base
		req := UpdateTaskRequest{Labels: ptr([]string{})}
		require.NoError(t, req.Apply(&task, now))
		assert.Equal(t, []string{}, task.Labels)
	})

	t.Run("invalid input leaves task untouched", func(t *testing.T) {
		task := base
		req := UpdateTaskRequest{Title: ptr("New"), Status: ptr("BLOCKED")}
		err := req.Apply(&task, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, base, task)
	})

	t.Run("blank title rejected", func(t *testing.T) {
		task := base
		req := UpdateTaskRequest{Title: ptr("   ")}
		assert.Error(t, req.Apply(&task, now))
	})
}
