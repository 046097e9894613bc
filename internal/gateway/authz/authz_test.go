package authz

//go:generate mockgen -source=authz.go -destination=mocks/mocks.go -package=mocks ProjectLookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"taskflow/internal/gateway/authz/mocks"
	"taskflow/pkg/identity"
	"taskflow/pkg/platform/sentinel"
)

type AuthorizerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	lookup *mocks.MockProjectLookup
	authz  *Authorizer
}

func TestAuthorizerSuite(t *testing.T) {
	suite.Run(t, new(AuthorizerSuite))
}

func (s *AuthorizerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.lookup = mocks.NewMockProjectLookup(s.ctrl)
	s.authz = New(
		WithProjectLookup(s.lookup),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *AuthorizerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *AuthorizerSuite) TestHasProjectAccess() {
	cases := []struct {
		name    string
		claims  identity.Claims
		project string
		want    bool
	}{
		{"admin role any case", identity.Claims{Roles: []string{"ADMIN"}}, "p1", true},
		{"listed project", identity.Claims{Projects: []string{"p1"}}, "p1", true},
		{"listed project is exact", identity.Claims{Projects: []string{"P1"}}, "p1", false},
		{"global read scope", identity.Claims{Scope: "openid project:read"}, "p1", true},
		{"project read scope", identity.Claims{Scope: "project:p1:read"}, "p1", true},
		{"project write scope", identity.Claims{Scope: "project:p1:write"}, "p1", true},
		{"scope for other project", identity.Claims{Scope: "project:p2:read"}, "p1", false},
		{"project role", identity.Claims{ProjectRoles: map[string][]string{"p1": {"viewer"}}}, "p1", true},
		{"empty project role list", identity.Claims{ProjectRoles: map[string][]string{"p1": {}}}, "p1", false},
		{"no claims", identity.Claims{Subject: "u1"}, "p1", false},
		{"other project only", identity.Claims{Projects: []string{"p2"}}, "p1", false},
		{"blank project with admin", identity.Claims{Roles: []string{"admin"}}, "  ", false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, s.authz.HasProjectAccess(tc.claims, tc.project))
		})
	}
}

func (s *AuthorizerSuite) TestCustomAdminRole() {
	a := New(WithAdminRole("ops"))
	s.True(a.HasProjectAccess(identity.Claims{Roles: []string{"Ops"}}, "p1"))
	s.False(a.HasProjectAccess(identity.Claims{Roles: []string{"admin"}}, "p1"))
}

func (s *AuthorizerSuite) TestCanAccessTask() {
	ctx := context.Background()
	member := identity.Claims{Subject: "u1", Projects: []string{"p1"}}

	s.Run("resolves project and applies rules", func() {
		s.lookup.EXPECT().ProjectIDForTask(gomock.Any(), "t1").Return("p1", nil)
		s.True(s.authz.CanAccessTask(ctx, member, "t1"))
	})

	s.Run("task in another project", func() {
		s.lookup.EXPECT().ProjectIDForTask(gomock.Any(), "t2").Return("p2", nil)
		s.False(s.authz.CanAccessTask(ctx, member, "t2"))
	})

	s.Run("not found denies", func() {
		s.lookup.EXPECT().ProjectIDForTask(gomock.Any(), "t3").Return("", sentinel.ErrNotFound)
		s.False(s.authz.CanAccessTask(ctx, member, "t3"))
	})

	s.Run("lookup error denies even for admin", func() {
		s.lookup.EXPECT().ProjectIDForTask(gomock.Any(), "t4").Return("", errors.New("timeout"))
		s.False(s.authz.CanAccessTask(ctx, identity.Claims{Roles: []string{"admin"}}, "t4"))
	})

	s.Run("blank task id skips lookup", func() {
		s.False(s.authz.CanAccessTask(ctx, member, ""))
	})
}

func (s *AuthorizerSuite) TestCanAccessTaskWithoutLookup() {
	s.False(New().CanAccessTask(context.Background(), identity.Claims{Roles: []string{"admin"}}, "t1"))
}
