//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taskflow/internal/task/models"
	"taskflow/internal/task/store"
	"taskflow/pkg/platform/sentinel"
	"taskflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "tasks"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	t := &models.Task{
		ID:          uuid.NewString(),
		ProjectID:   "p1",
		Title:       "Persist me",
		Description: "with labels",
		Status:      models.StatusTodo,
		Labels:      []string{"db", "pq"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.store.Create(ctx, t))
	s.ErrorIs(s.store.Create(ctx, t), sentinel.ErrConflict)

	got, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(t.Labels, got.Labels)
	s.True(t.CreatedAt.Equal(got.CreatedAt))

	t.Status = models.StatusDone
	t.Labels = nil
	t.UpdatedAt = now.Add(time.Minute)
	s.Require().NoError(s.store.Update(ctx, t))

	got, err = s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDone, got.Status)
	s.Empty(got.Labels)
}

func (s *PostgresStoreSuite) TestMissing() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(ctx, &models.Task{ID: "nope"}), sentinel.ErrNotFound)
}
