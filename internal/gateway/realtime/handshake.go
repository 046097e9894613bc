package realtime

import (
	"net/http"
	"net/url"
	"strings"

	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/identity"
	"taskflow/pkg/platform/middleware/metadata"
	"taskflow/pkg/requestcontext"
)

// ProjectIDParam is the query parameter naming the project to join.
const ProjectIDParam = "projectId"

// Admission is what a successful handshake hands to the new session.
type Admission struct {
	Subject   string
	ProjectID string
	Claims    identity.Claims
	ClientIP  string
	Device    string
}

// Gate admits or rejects websocket upgrade requests. It never touches the Registry.
type Gate struct {
	authz   ProjectAuthorizer
	origins []string
}

// NewGate creates a gate. An origins entry of "*" allows any origin.
func NewGate(authz ProjectAuthorizer, allowedOrigins []string) *Gate {
	return &Gate{authz: authz, origins: allowedOrigins}
}

// Admit checks, in order: claims present (401), projectId present (400),
// project access (403).
func (g *Gate) Admit(r *http.Request) (Admission, error) {
	ctx := r.Context()
	claims, ok := requestcontext.Claims(ctx)
	if !ok || claims.IsZero() {
		return Admission{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	projectID := strings.TrimSpace(r.URL.Query().Get(ProjectIDParam))
	if projectID == "" {
		return Admission{}, dErrors.New(dErrors.CodeBadRequest, "projectId query parameter is required")
	}
	if !g.authz.HasProjectAccess(claims, projectID) {
		return Admission{}, dErrors.New(dErrors.CodeForbidden, "access to project denied")
	}

	clientIP := requestcontext.ClientIP(ctx)
	if clientIP == "" {
		clientIP = metadata.ClientIPFromRequest(r)
	}
	return Admission{
		Subject:   claims.Subject,
		ProjectID: projectID,
		Claims:    claims,
		ClientIP:  clientIP,
		Device:    metadata.DeviceLabel(r.UserAgent()),
	}, nil
}

// CheckOrigin allows requests without an Origin header and those whose
// origin is configured.
func (g *Gate) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	normalized := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, allowed := range g.origins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), normalized) {
			return true
		}
	}
	return false
}
