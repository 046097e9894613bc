package realtime

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"taskflow/internal/platform/metrics"
	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/platform/httputil"
)

// Handler upgrades admitted requests on /ws and runs a Session per connection.
type Handler struct {
	gate     *Gate
	upgrader websocket.Upgrader
	sessions SessionConfig
	baseCtx  context.Context
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithBaseContext ties every session to ctx; cancelling it closes them all.
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handler) {
		if ctx != nil {
			h.baseCtx = ctx
		}
	}
}

// NewHandler wires the gate to session creation.
func NewHandler(gate *Gate, sessions SessionConfig, opts ...HandlerOption) *Handler {
	logger := sessions.Logger
	if logger == nil {
		logger = slog.Default()
		sessions.Logger = logger
	}
	h := &Handler{
		gate: gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     gate.CheckOrigin,
		},
		sessions: sessions,
		baseCtx:  context.Background(),
		logger:   logger,
		metrics:  sessions.Metrics,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the websocket endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ws", h.ServeWS)
}

// ServeWS runs the handshake gate, upgrades, and blocks for the session's lifetime.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admission, err := h.gate.Admit(r)
	if err != nil {
		h.reject(ctx, err)
		httputil.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		if h.metrics != nil {
			h.metrics.HandshakeRejected.WithLabelValues("upgrade").Inc()
		}
		h.logger.InfoContext(ctx, "websocket upgrade failed",
			"project_id", admission.ProjectID,
			"error", err,
		)
		return
	}

	session := NewSession(uuid.NewString(), conn, admission, h.sessions)
	session.Run(h.baseCtx)
}

func (h *Handler) reject(ctx context.Context, err error) {
	reason := "internal"
	if de, ok := dErrors.As(err); ok {
		reason = string(de.Code)
	}
	if h.metrics != nil {
		h.metrics.HandshakeRejected.WithLabelValues(reason).Inc()
	}
	h.logger.InfoContext(ctx, "websocket handshake rejected", "reason", reason)
}
