// Package request assigns every inbound request a correlation id and a
// request-scoped timestamp.
package request

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/pkg/requestcontext"
)

// HeaderCorrelationID carries the correlation id between services.
const HeaderCorrelationID = "Correlation-Id"

// maxCorrelationIDLen caps client-supplied ids before they reach logs.
const maxCorrelationIDLen = 128

// CorrelationID reuses a caller-supplied Correlation-Id header or generates
// one, echoes it on the response and stores it in the context.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
		if cid == "" || len(cid) > maxCorrelationIDLen {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)

		ctx := requestcontext.WithRequestID(r.Context(), cid)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// Propagate copies the context correlation id onto an outbound request.
func Propagate(ctx context.Context, out *http.Request) {
	if cid := requestcontext.RequestID(ctx); cid != "" {
		out.Header.Set(HeaderCorrelationID, cid)
	}
}
