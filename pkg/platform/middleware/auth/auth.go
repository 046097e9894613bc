package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/identity"
	"taskflow/pkg/platform/httputil"
	request "taskflow/pkg/platform/middleware/request"
	"taskflow/pkg/requestcontext"
)

// TokenValidator verifies a bearer token and returns its decoded claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (identity.Claims, error)
}

// QueryTokenParam lets browser websocket clients, which cannot set headers,
// pass the token in the query string.
const QueryTokenParam = "access_token"

// TokenFromRequest extracts a bearer token from the Authorization header or,
// failing that, the access_token query parameter.
func TokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryTokenParam))
}

// RequireAuth rejects requests without a valid token with 401 and attaches
// the decoded claims otherwise.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token := TokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithClaims(ctx, claims)))
		})
	}
}

// Authenticate attaches claims when a valid token is present but never
// rejects. Handlers downstream decide how to treat anonymous callers; the
// websocket handshake gate uses this so it can answer 401 itself.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "ignoring invalid token",
					"error", err,
					"request_id", request.GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithClaims(r.Context(), claims)))
		})
	}
}

// ClaimsFrom is a convenience wrapper for handlers.
func ClaimsFrom(ctx context.Context) (identity.Claims, bool) {
	return requestcontext.Claims(ctx)
}
