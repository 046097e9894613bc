package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"taskflow/pkg/platform/circuit"
	"taskflow/pkg/platform/sentinel"
)

// maxLookupBody bounds the task document read during a project lookup.
const maxLookupBody = 1 << 20

// TaskLookup resolves a task's project through GET /tasks/{id} on the
// task-service. Consecutive failures open the breaker; while open, lookups
// fail fast with sentinel.ErrUnavailable, which the authorizer treats as deny.
type TaskLookup struct {
	client  *Client
	breaker *circuit.Breaker
}

// NewTaskLookup wraps client with breaker. A nil breaker gets the defaults.
func NewTaskLookup(client *Client, breaker *circuit.Breaker) *TaskLookup {
	if breaker == nil {
		breaker = circuit.New(client.Name())
	}
	return &TaskLookup{client: client, breaker: breaker}
}

// ProjectIDForTask returns the id of the project owning taskID.
func (l *TaskLookup) ProjectIDForTask(ctx context.Context, taskID string) (string, error) {
	if !l.breaker.Allow() {
		l.client.count("circuit_open")
		return "", fmt.Errorf("%s lookup: %w", l.client.name, sentinel.ErrUnavailable)
	}

	projectID, err := l.fetch(ctx, taskID)
	switch {
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.client.logger.InfoContext(ctx, "upstream circuit closed", "upstream", l.client.name)
		}
	default:
		if _, change := l.breaker.RecordFailure(); change.Opened {
			l.client.logger.WarnContext(ctx, "upstream circuit opened",
				"upstream", l.client.name,
				"error", err,
			)
		}
	}
	return projectID, err
}

func (l *TaskLookup) fetch(ctx context.Context, taskID string) (string, error) {
	req, err := l.client.newRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.http.Do(req)
	if err != nil {
		l.client.count("error")
		return "", fmt.Errorf("%s lookup: %w", l.client.name, err)
	}
	defer resp.Body.Close()
	l.client.count(fmt.Sprintf("%dxx", resp.StatusCode/100))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("task %s: %w", taskID, sentinel.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%s lookup: unexpected status %d", l.client.name, resp.StatusCode)
	}

	var body struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("%s lookup: decode: %w", l.client.name, err)
	}
	if body.ProjectID == "" {
		return "", fmt.Errorf("task %s has no project: %w", taskID, sentinel.ErrNotFound)
	}
	return body.ProjectID, nil
}
