package testutil

import (
	"net/http"

	"taskflow/pkg/identity"
	"taskflow/pkg/requestcontext"
)

// WithClaims attaches claims to the request as the auth middleware would.
func WithClaims(req *http.Request, c identity.Claims) *http.Request {
	return req.WithContext(requestcontext.WithClaims(req.Context(), c))
}

// MemberOf returns claims for a user that belongs to the given projects.
func MemberOf(userID string, projects ...string) identity.Claims {
	return identity.Claims{Subject: userID, Projects: projects}
}

// Admin returns claims carrying the admin role.
func Admin(userID string) identity.Claims {
	return identity.Claims{Subject: userID, Roles: []string{"admin"}}
}
