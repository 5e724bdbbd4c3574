package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/progress/progresstest"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

func newHandler(t *testing.T, features FeatureGate) (*GetProgressHandler, *progresstest.MemoryStore, *timeutil.FixedClock) {
	t.Helper()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	store := progresstest.NewMemoryStore(0, clock.Now)
	h := NewGetProgressHandler(store, GetProgressHandlerConfig{
		Clock:            clock,
		Features:         features,
		RecentActivities: 2,
	})
	return h, store, clock
}

func TestGetProgress_LazyCreate(t *testing.T) {
	h, store, _ := newHandler(t, nil)

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: "new-user"})

	require.NoError(t, err)
	assert.Equal(t, "new-user", dto.UserID)
	assert.Equal(t, 1, dto.Level.Level)
	assert.Equal(t, 100, dto.Level.NextLevelAt)
	assert.Zero(t, dto.Overview.TotalProgress)
	assert.Empty(t, dto.RecentActivities)
	require.NotNil(t, dto.CurrentChallenge)
	assert.Equal(t, 0, dto.CurrentChallenge.Index)
	assert.Len(t, dto.Achievements, len(progress.DefaultCatalog().Achievements))

	p, err := store.Get(context.Background(), "new-user")
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Zero(t, store.Saves)
}

func TestGetProgress_PaddedUserIDReadsSameRecord(t *testing.T) {
	h, store, clock := newHandler(t, nil)
	p := progress.NewUserProgress("u1", clock.Now())
	p.TotalPoints = 40
	store.Put(p)

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: " u1 "})

	require.NoError(t, err)
	assert.Equal(t, "u1", dto.UserID)
	assert.Equal(t, 40, dto.Overview.TotalPoints)
	padded, err := store.Get(context.Background(), " u1 ")
	require.NoError(t, err)
	assert.Nil(t, padded)
}

func TestGetProgress_ProjectionsDoNotWrite(t *testing.T) {
	h, store, clock := newHandler(t, nil)
	p := progress.NewUserProgress("u1", clock.Now())
	p.Version = 3
	p.MajorsExplored = []string{"cs", "math", "bio"}
	p.RoadmapsViewed = []string{"r1"}
	p.CurrentStreak = 4
	p.LastActivityDate = "2025-03-09"
	p.Goals = []progress.Goal{{
		ID: "goal-explore-majors", Title: "Explore 5 majors", Target: 5, Current: 1,
		Unit: "majors", Metric: progress.MetricMajorsExplored,
	}}
	for i, id := range []string{"a1", "a2", "a3"} {
		p.Activities = append(p.Activities, progress.Activity{ID: id, Timestamp: clock.Now().Add(time.Duration(i) * time.Minute)})
	}
	store.Put(p)

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: "u1"})

	require.NoError(t, err)
	// 3*8 + 1*12 = 36 exploration, blended at 0.4
	assert.Equal(t, 14, dto.Overview.TotalProgress)
	require.Len(t, dto.Goals, 1)
	assert.Equal(t, 3, dto.Goals[0].Current)
	require.NotNil(t, dto.Streak)
	assert.Equal(t, 4, dto.Streak.WeeklyProgress)
	assert.False(t, dto.Streak.ActiveToday)
	require.Len(t, dto.RecentActivities, 2)
	assert.Equal(t, "a3", dto.RecentActivities[0].ID)
	assert.Equal(t, int64(3), dto.Version)

	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Goals[0].Current)
	assert.Zero(t, store.Saves)
}

func TestGetProgress_FeatureSections(t *testing.T) {
	ff := config.NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(config.FeatureChallenges, 0))
	require.NoError(t, ff.SetRolloutPercent(config.FeatureStreaks, 0))
	h, _, _ := newHandler(t, ff)

	dto, err := h.Handle(context.Background(), GetProgressQuery{UserID: "u1"})

	require.NoError(t, err)
	assert.Nil(t, dto.CurrentChallenge)
	assert.Nil(t, dto.Streak)
	assert.NotEmpty(t, dto.Achievements)
}

func TestGetProgress_Errors(t *testing.T) {
	h, store, _ := newHandler(t, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, GetProgressQuery{})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, GetProgressQuery{UserID: "u1", RecentLimit: -1})
	assert.True(t, shared.IsValidation(err))

	store.FailNext = errors.New("connection reset")
	_, err = h.Handle(ctx, GetProgressQuery{UserID: "u1"})
	assert.True(t, shared.IsPersistence(err))

	_, err = h.Achievement(ctx, "u1", "no-such-badge")
	assert.True(t, shared.IsNotFound(err))
}

func TestGetProgress_SingleSections(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	ctx := context.Background()

	a, err := h.Achievement(ctx, "u1", "first-major")
	require.NoError(t, err)
	assert.False(t, a.Earned)
	assert.Equal(t, 1, a.Requirement)

	c, err := h.Challenge(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "welcome-first-major", c.ID)
	assert.Equal(t, 7, c.Total)
}
