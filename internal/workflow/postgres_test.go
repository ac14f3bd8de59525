package workflow

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automation/pkg/logger"
)

// Runs against a scratch database named by TEST_DATABASE_URL.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, _ = pool.Exec(ctx, `DROP TABLE IF EXISTS workflows`)
	s := NewPostgresStore(pool, logger.Nop())
	require.NoError(t, s.EnsureSchema(ctx))

	a, err := s.Analytics(ctx)
	require.NoError(t, err)
	assert.Zero(t, a.TotalWorkflows)
	assert.Zero(t, a.ActivePercentage)
	assert.Empty(t, a.RecentWorkflows)

	require.NoError(t, s.SeedIfEmpty(ctx, Seed()))
	require.NoError(t, s.SeedIfEmpty(ctx, Seed()), "seeding twice is a no-op")
	_, err = pool.Exec(ctx, `INSERT INTO workflows (name, is_active) VALUES ('Paused', false)`)
	require.NoError(t, err)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Daily report", all[0].Name)
	assert.Nil(t, all[3].Description)

	a, err = s.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, a.TotalWorkflows)
	assert.Equal(t, 1, a.InactiveWorkflows)
	assert.Equal(t, 75.0, a.ActivePercentage)
	assert.Equal(t, "Paused", a.RecentWorkflows[0].Name)
}
