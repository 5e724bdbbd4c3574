package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, window int) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(db, window, func() time.Time { return testNow })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func activities(n int) []progress.Activity {
	out := make([]progress.Activity, n)
	for i := range out {
		out[i] = progress.Activity{
			ID:        fmt.Sprintf("a%d", i+1),
			Action:    "step",
			Category:  progress.CategoryExploration,
			Timestamp: testNow.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestGet_AbsentIsNil(t *testing.T) {
	s := newTestStore(t, 5)

	p, err := s.Get(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCreate_IsIdempotent(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()

	first, err := s.Create(ctx, "u1")
	require.NoError(t, err)
	streak := 4
	_, err = s.Save(ctx, "u1", progress.Patch{CurrentStreak: &streak, LongestStreak: &streak})
	require.NoError(t, err)

	second, err := s.Create(ctx, "u1")

	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, 4, second.CurrentStreak)
	assert.Equal(t, int64(2), second.Version)
	assert.NotNil(t, second.Achievements)
}

func TestSave_MergesAndTrims(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()
	_, err := s.Create(ctx, "u1")
	require.NoError(t, err)

	saved, err := s.Save(ctx, "u1", progress.Patch{
		ExpectedVersion: 1,
		RoadmapsViewed:  &[]string{"r1"},
		Achievements:    map[string]progress.AchievementState{"roadmap-reader": {Earned: true, Date: "2025-03-01"}},
		NewActivities:   activities(4),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, saved.RoadmapsViewed)
	require.Len(t, saved.Activities, 3)
	assert.Equal(t, "a2", saved.Activities[0].ID)

	saved, err = s.Save(ctx, "u1", progress.Patch{
		Achievements: map[string]progress.AchievementState{"roadmap-reader": {Earned: true, Date: "2026-01-01"}},
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Day("2025-03-01"), saved.Achievements["roadmap-reader"].Date)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved.Version, got.Version)
	assert.Equal(t, saved.Activities, got.Activities)
}

func TestSave_VersionMismatchIsConflict(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()
	_, err := s.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = s.Save(ctx, "u1", progress.Patch{ExpectedVersion: 7, MajorsExplored: &[]string{"x"}})

	assert.True(t, shared.IsConflict(err))
	got, _ := s.Get(ctx, "u1")
	assert.Empty(t, got.MajorsExplored)
}

func TestSave_MissingRecord(t *testing.T) {
	s := newTestStore(t, 5)

	_, err := s.Save(context.Background(), "ghost", progress.Patch{})

	assert.True(t, shared.IsNotFound(err))
}

func TestSave_ConcurrentCASLosersConflict(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()
	_, err := s.Create(ctx, "u1")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, clash int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			streak := i + 1
			_, err := s.Save(ctx, "u1", progress.Patch{ExpectedVersion: 1, CurrentStreak: &streak, LongestStreak: &streak})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if shared.IsConflict(err) {
				clash++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, clash)
}

func TestActivityFeed(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	_, err := s.Create(ctx, "u1")
	require.NoError(t, err)

	for _, a := range activities(3) {
		require.NoError(t, s.AppendActivity(ctx, "u1", a))
	}

	recent, err := s.RecentActivities(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a3", recent[0].ID)
	assert.Equal(t, "a2", recent[1].ID)

	none, err := s.RecentActivities(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
