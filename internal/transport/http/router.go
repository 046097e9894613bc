// Package httptransport builds the router shared by every taskflow service:
// request middleware, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskflow/pkg/platform/httputil"
	"taskflow/pkg/platform/middleware/metadata"
	request "taskflow/pkg/platform/middleware/request"
)

// healthTimeout bounds one /healthz evaluation.
const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter returns a chi router with correlation ids, client metadata,
// access logging and panic recovery installed, plus GET /healthz and
// GET /metrics. Callers mount their own routes on the result.
func NewRouter(service string, logger *slog.Logger, gatherer prometheus.Gatherer, checks ...HealthCheck) chi.Router {
	r := chi.NewRouter()
	r.Use(request.CorrelationID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.Recovery(logger))

	r.Get("/healthz", health(service, logger, checks))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func health(service string, logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"check", c.Name,
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				results[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "up"
		}

		body := map[string]any{"service": service, "status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
