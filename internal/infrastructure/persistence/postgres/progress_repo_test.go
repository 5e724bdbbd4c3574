package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

func TestMigrationsAreOrdered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://user@host:notaport/db", PoolOptions{})

	assert.ErrorIs(t, err, ErrInvalidURL)
}

// connectTest connects to POSTGRES_TEST_URL or skips.
func connectTest(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	ctx := context.Background()
	conn, err := Connect(ctx, url, PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	return conn
}

func TestMigrator_Status(t *testing.T) {
	conn := connectTest(t)

	status, err := NewMigrator(conn).Status(context.Background())
	require.NoError(t, err)

	require.Len(t, status, len(GetMigrations()))
	for _, m := range status {
		assert.True(t, m.IsApplied, m.Name)
		assert.False(t, m.AppliedAt.IsZero(), m.Name)
	}
}

func TestProgressRepository_Integration(t *testing.T) {
	conn := connectTest(t)
	ctx := context.Background()
	userID := "pg-it-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "DELETE FROM user_progress WHERE user_id = $1", userID)
	})

	repo := NewProgressRepository(conn, 3, nil)

	p, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = repo.Create(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, 1, p.Level)

	again, err := repo.Create(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, p.Version, again.Version)

	now := time.Now().UTC().Truncate(time.Millisecond)
	acts := []progress.Activity{
		{ID: "a1", Action: "one", Category: progress.CategoryExploration, Timestamp: now},
		{ID: "a2", Action: "two", Category: progress.CategoryLearning, Timestamp: now},
		{ID: "a3", Action: "three", Category: progress.CategoryGoal, Timestamp: now, Points: 50},
		{ID: "a4", Action: "four", Category: progress.CategoryChallenge, Timestamp: now},
	}
	streak := 2
	saved, err := repo.Save(ctx, userID, progress.Patch{
		ExpectedVersion: 1,
		MajorsExplored:  &[]string{"cs"},
		Achievements:    map[string]progress.AchievementState{"first-major": {Earned: true, Date: "2025-03-01"}},
		NewActivities:   acts,
		CurrentStreak:   &streak,
		LongestStreak:   &streak,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.Equal(t, []string{"cs"}, saved.MajorsExplored)
	require.Len(t, saved.Activities, 3)
	assert.Equal(t, "a2", saved.Activities[0].ID)

	// existing achievement keys are never overwritten
	saved, err = repo.Save(ctx, userID, progress.Patch{
		Achievements: map[string]progress.AchievementState{"first-major": {Earned: true, Date: "2030-01-01"}},
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Day("2025-03-01"), saved.Achievements["first-major"].Date)

	_, err = repo.Save(ctx, userID, progress.Patch{ExpectedVersion: 1, CurrentStreak: &streak})
	assert.True(t, shared.IsConflict(err))

	recent, err := repo.RecentActivities(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a4", recent[0].ID)
}
