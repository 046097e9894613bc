// Package proxy exposes the gateway's authorized REST surface and forwards
// admitted requests to the task-service and activity-service.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/identity"
	"taskflow/pkg/platform/httputil"
	"taskflow/pkg/platform/middleware/auth"
	request "taskflow/pkg/platform/middleware/request"
)

// maxBodyBytes bounds request bodies the gateway inspects before forwarding.
const maxBodyBytes = 1 << 20

// Authorizer is the project access policy applied before forwarding.
type Authorizer interface {
	HasProjectAccess(c identity.Claims, projectID string) bool
	CanAccessTask(ctx context.Context, c identity.Claims, taskID string) bool
}

// Forwarder relays a request to a backing service path.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, path string)
}

// Handler serves the gateway REST routes. Every route expects claims placed
// in the context by auth.RequireAuth.
type Handler struct {
	authz      Authorizer
	tasks      Forwarder
	activities Forwarder
	logger     *slog.Logger
}

// New creates a proxy Handler.
func New(authz Authorizer, tasks, activities Forwarder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{authz: authz, tasks: tasks, activities: activities, logger: logger}
}

// Register mounts the proxied routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tasks", h.handleCreateTask)
	r.Get("/tasks/{id}", h.handleTask)
	r.Put("/tasks/{id}", h.handleTask)
	r.Patch("/tasks/{id}", h.handleTask)
	r.Get("/activities/project/{projectId}", h.handleProjectActivities)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	var target struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(body, &target); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Invalid JSON in request body"))
		return
	}
	projectID := strings.TrimSpace(target.ProjectID)
	if projectID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "projectId is required"))
		return
	}
	if !h.authz.HasProjectAccess(claims, projectID) {
		h.deny(ctx, w, claims, "project_id", projectID)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	h.tasks.Forward(w, r, "/tasks")
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")
	if !h.authz.CanAccessTask(r.Context(), claims, taskID) {
		h.deny(r.Context(), w, claims, "task_id", taskID)
		return
	}
	h.tasks.Forward(w, r, "/tasks/"+url.PathEscape(taskID))
}

func (h *Handler) handleProjectActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "projectId")
	if !h.authz.HasProjectAccess(claims, projectID) {
		h.deny(r.Context(), w, claims, "project_id", projectID)
		return
	}
	h.activities.Forward(w, r, "/activities/project/"+url.PathEscape(projectID))
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (identity.Claims, bool) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return identity.Claims{}, false
	}
	return claims, true
}

func (h *Handler) deny(ctx context.Context, w http.ResponseWriter, claims identity.Claims, key, value string) {
	h.logger.InfoContext(ctx, "gateway request denied",
		"request_id", request.GetRequestID(ctx),
		"user_id", claims.Subject,
		key, value,
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "access denied"))
}
