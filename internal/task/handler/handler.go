package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskflow/internal/task/models"
	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/platform/httputil"
	request "taskflow/pkg/platform/middleware/request"
)

// Service defines the task operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error)
}

// Handler serves the task-service REST API.
type Handler struct {
	tasks  Service
	logger *slog.Logger
}

// New creates a task Handler.
func New(tasks Service, logger *slog.Logger) *Handler {
	return &Handler{tasks: tasks, logger: logger}
}

// Register mounts the /tasks routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Patch("/{id}", h.handleUpdate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[models.CreateTaskRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	task, err := h.tasks.Create(ctx, *req)
	if err != nil {
		h.fail(ctx, w, "create task", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task, err := h.tasks.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get task", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[models.UpdateTaskRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	task, err := h.tasks.Update(ctx, chi.URLParam(r, "id"), *req)
	if err != nil {
		h.fail(ctx, w, "update task", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.InfoContext(ctx, op+" rejected",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
