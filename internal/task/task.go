// Package task owns task CRUD for the task-service and announces every
// write on the task.events topic.
package task

import (
	"log/slog"

	"taskflow/internal/task/handler"
	"taskflow/internal/task/service"
)

// Service exposes task orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the task service.
type Handler = handler.Handler

// NewHandler constructs the task-service HTTP handler.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
