// Package authz decides whether a caller's claims grant access to a project.
package authz

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"taskflow/pkg/identity"
	pstrings "taskflow/pkg/platform/strings"
)

// ScopeProjectRead grants read access to every project.
const ScopeProjectRead = "project:read"

// ProjectLookup resolves the project that owns a task.
type ProjectLookup interface {
	ProjectIDForTask(ctx context.Context, taskID string) (string, error)
}

// Authorizer evaluates project access. It is stateless apart from its
// configuration and safe for concurrent use.
type Authorizer struct {
	adminRole string
	lookup    ProjectLookup
	logger    *slog.Logger
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithAdminRole overrides the role name that grants access everywhere.
func WithAdminRole(role string) Option {
	return func(a *Authorizer) {
		if strings.TrimSpace(role) != "" {
			a.adminRole = role
		}
	}
}

// WithProjectLookup enables CanAccessTask.
func WithProjectLookup(l ProjectLookup) Option {
	return func(a *Authorizer) {
		a.lookup = l
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Authorizer with the "admin" role and no task lookup.
func New(opts ...Option) *Authorizer {
	a := &Authorizer{
		adminRole: "admin",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasProjectAccess applies the access rules in order and returns on the
// first grant. A blank project id is always denied.
func (a *Authorizer) HasProjectAccess(c identity.Claims, projectID string) bool {
	if strings.TrimSpace(projectID) == "" {
		return false
	}
	if pstrings.ContainsFold(c.Roles, a.adminRole) {
		return true
	}
	if slices.Contains(c.Projects, projectID) {
		return true
	}
	scopes := c.Scopes()
	if slices.Contains(scopes, ScopeProjectRead) {
		return true
	}
	if slices.Contains(scopes, "project:"+projectID+":read") ||
		slices.Contains(scopes, "project:"+projectID+":write") {
		return true
	}
	// An entry with an empty role list is treated as absent.
	return len(c.ProjectRoles[projectID]) > 0
}

// CanAccessTask resolves the task's project and applies HasProjectAccess.
// Any lookup failure denies.
func (a *Authorizer) CanAccessTask(ctx context.Context, c identity.Claims, taskID string) bool {
	if a.lookup == nil || strings.TrimSpace(taskID) == "" {
		return false
	}
	projectID, err := a.lookup.ProjectIDForTask(ctx, taskID)
	if err != nil {
		a.logger.WarnContext(ctx, "task project lookup failed",
			"task_id", taskID,
			"error", err,
		)
		return false
	}
	return a.HasProjectAccess(c, projectID)
}
