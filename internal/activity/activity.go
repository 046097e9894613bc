// Package activity keeps the per-project audit trail for the
// activity-service, built by consuming task.events.
package activity

import (
	"log/slog"

	"taskflow/internal/activity/consumer"
	"taskflow/internal/activity/handler"
)

// Recorder consumes task events into activities.
type Recorder = consumer.Recorder

// Handler serves the activity read API.
type Handler = handler.Handler

// NewHandler constructs the activity-service HTTP handler.
func NewHandler(activities handler.Reader, logger *slog.Logger) *Handler {
	return handler.New(activities, logger)
}
