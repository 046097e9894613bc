package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"taskflow/internal/activity/models"
	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/platform/httputil"
	request "taskflow/pkg/platform/middleware/request"
)

// Reader is the read side of the activity store.
type Reader interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]models.Activity, error)
	List(ctx context.Context, limit int) ([]models.Activity, error)
}

// Handler serves the activity-service REST API.
type Handler struct {
	activities Reader
	logger     *slog.Logger
}

// New creates an activity Handler.
func New(activities Reader, logger *slog.Logger) *Handler {
	return &Handler{activities: activities, logger: logger}
}

// Register mounts the /activities routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/project/{projectId}", h.handleListByProject)
	})
}

// handleList lists one project when ?projectId= is set, else everything.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	var items []models.Activity
	if projectID != "" {
		items, err = h.activities.ListByProject(r.Context(), projectID, limit)
	} else {
		items, err = h.activities.List(r.Context(), limit)
	}
	h.respond(r.Context(), w, items, err)
}

func (h *Handler) handleListByProject(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.activities.ListByProject(r.Context(), chi.URLParam(r, "projectId"), limit)
	h.respond(r.Context(), w, items, err)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, items []models.Activity, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list activities",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list activities"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return n, nil
}
