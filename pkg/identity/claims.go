// Package identity models the decoded identity claims the gateway receives
// from its token validator. Claims are immutable once built.
package identity

import (
	"fmt"
	"strings"

	pstrings "taskflow/pkg/platform/strings"
)

// Claim names read from a decoded token payload.
const (
	ClaimSubject      = "sub"
	ClaimRoles        = "roles"
	ClaimProjects     = "projects"
	ClaimScope        = "scope"
	ClaimProjectRoles = "project_roles"
)

// Claims is the subset of a verified token the gateway authorizes against.
type Claims struct {
	Subject      string
	Roles        []string
	Projects     []string
	Scope        string
	ProjectRoles map[string][]string
}

// Scopes splits the space-delimited scope claim.
func (c Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// IsZero reports whether no identity is present.
func (c Claims) IsZero() bool {
	return c.Subject == "" && len(c.Roles) == 0 && len(c.Projects) == 0 &&
		c.Scope == "" && len(c.ProjectRoles) == 0
}

// FromMap builds Claims from a raw decoded payload. List claims accept a JSON
// array or a comma-separated string; anything else is treated as absent.
func FromMap(raw map[string]any) Claims {
	c := Claims{
		Roles:    listClaim(raw[ClaimRoles]),
		Projects: listClaim(raw[ClaimProjects]),
	}
	if sub, ok := raw[ClaimSubject].(string); ok {
		c.Subject = sub
	}
	if scope, ok := raw[ClaimScope].(string); ok {
		c.Scope = scope
	}
	if pr, ok := raw[ClaimProjectRoles].(map[string]any); ok {
		c.ProjectRoles = make(map[string][]string, len(pr))
		for project, roles := range pr {
			if arr, ok := roles.([]any); ok {
				c.ProjectRoles[project] = stringify(arr)
			}
		}
	}
	return c
}

func listClaim(v any) []string {
	switch t := v.(type) {
	case []any:
		return stringify(t)
	case []string:
		return pstrings.DedupeAndTrim(t)
	case string:
		return pstrings.DedupeAndTrim(strings.Split(t, ","))
	default:
		return nil
	}
}

func stringify(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return pstrings.DedupeAndTrim(out)
}
