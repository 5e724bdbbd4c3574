package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/progress/progresstest"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

func TestRecordActivity_FirstVisitCreatesRecord(t *testing.T) {
	f := newFixture(t)

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})

	assert.True(t, res.Saved)
	assert.Equal(t, 1, res.Progress.CurrentStreak)
	assert.Equal(t, shared.Day("2025-03-01"), res.Progress.LastActivityDate)
	assert.Equal(t, int64(2), res.Progress.Version)
	assert.Equal(t, []shared.EventType{shared.EventProgressCreated, shared.EventStreakUpdated}, f.events.types())
}

func TestRecordActivity_PaddedUserIDSharesRecord(t *testing.T) {
	f := newFixture(t)
	f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor, MajorID: "cs"})

	res := f.record(t, RecordActivityCommand{UserID: "  u1 ", Type: ActivityTypeExploreMajor, MajorID: "math"})

	assert.Equal(t, "u1", res.Progress.UserID)
	assert.Equal(t, []string{"cs", "math"}, res.Progress.MajorsExplored)
	padded, err := f.store.Get(context.Background(), "  u1 ")
	require.NoError(t, err)
	assert.Nil(t, padded)
}

func TestRecordActivity_SameDayRepeatIsNoop(t *testing.T) {
	f := newFixture(t)
	f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor, MajorID: "cs"})
	f.events.reset()
	saves := f.store.Saves

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor, MajorID: "cs"})

	assert.False(t, res.Changed)
	assert.False(t, res.Saved)
	assert.Equal(t, saves, f.store.Saves)
	assert.Empty(t, f.events.events)
	assert.Equal(t, 10, res.Progress.TotalPoints)
}

func TestRecordActivity_StreakBreaks(t *testing.T) {
	f := newFixture(t)
	f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})
	f.nextDay(1)
	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})
	require.Equal(t, 2, res.Progress.CurrentStreak)
	f.events.reset()

	f.nextDay(2)
	res = f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})

	assert.True(t, res.Streak.Broken)
	assert.Equal(t, 2, res.Streak.Previous)
	assert.Equal(t, 1, res.Progress.CurrentStreak)
	assert.Equal(t, 2, res.Progress.LongestStreak)
	assert.Equal(t, 3, res.Progress.TotalDaysActive)
	assert.Equal(t, []shared.EventType{shared.EventStreakBroken, shared.EventStreakUpdated}, f.events.types())
}

func TestRecordActivity_UnlockAndLevelUp(t *testing.T) {
	f := newFixture(t)
	f.seed(func(p *progress.UserProgress) {
		p.Experience = 95
		p.TotalPoints = 95
	})

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor, MajorID: "cs"})

	assert.True(t, res.Progress.Achievements["first-major"].Earned)
	assert.Equal(t, 105, res.Progress.Experience)
	assert.Equal(t, 2, res.Progress.Level)
	assert.Equal(t, []shared.EventType{
		shared.EventStreakUpdated,
		shared.EventAchievementUnlock,
		shared.EventLevelUp,
	}, f.events.types())

	up, ok := f.events.events[2].(shared.LevelUpEvent)
	require.True(t, ok)
	assert.Equal(t, 1, up.OldLevel)
	assert.Equal(t, 2, up.NewLevel)
}

func TestRecordActivity_AssessmentAndMajorProgress(t *testing.T) {
	f := newFixture(t)

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeTakeAssessment, AssessmentID: "riasec", Score: 81})
	require.Len(t, res.Progress.AssessmentsTaken, 1)
	assert.Equal(t, f.clock.Now(), res.Progress.AssessmentsTaken[0].CompletedAt)
	assert.True(t, res.Progress.Achievements["first-assessment"].Earned)

	res = f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeUpdateMajorProgress, MajorID: "cs", Percent: 140})
	assert.True(t, res.Changed)
	assert.Equal(t, 100.0, res.Progress.MajorProgress["cs"])

	res = f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeUpdateMajorProgress, MajorID: "cs", Percent: 100})
	assert.False(t, res.Changed)
	assert.False(t, res.Saved)
}

func TestRecordActivity_StreaksDisabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.features.SetRolloutPercent(config.FeatureStreaks, 0))

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})

	assert.False(t, res.Saved)
	assert.Zero(t, res.Progress.CurrentStreak)
	assert.Equal(t, []shared.EventType{shared.EventProgressCreated}, f.events.types())
}

func TestRecordActivity_AchievementsDisabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.features.SetRolloutPercent(config.FeatureAchievements, 0))

	res := f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor, MajorID: "cs"})

	assert.Empty(t, res.Progress.Achievements)
	assert.Zero(t, res.Progress.TotalPoints)
}

func TestRecordActivity_Validation(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActivityHandler(f.deps)

	tests := []struct {
		name string
		cmd  RecordActivityCommand
	}{
		{"unknown type", RecordActivityCommand{UserID: "u1", Type: "dance"}},
		{"major missing", RecordActivityCommand{UserID: "u1", Type: ActivityTypeExploreMajor}},
		{"roadmap missing", RecordActivityCommand{UserID: "u1", Type: ActivityTypeViewRoadmap, RoadmapID: " "}},
		{"assessment missing", RecordActivityCommand{UserID: "u1", Type: ActivityTypeTakeAssessment}},
		{"user missing", RecordActivityCommand{Type: ActivityTypeVisit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, f.store.Saves)
}

func TestRecordActivity_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext = errors.New("disk full")

	_, err := NewRecordActivityHandler(f.deps).Handle(context.Background(),
		RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})

	assert.True(t, shared.IsPersistence(err))
	assert.Empty(t, f.events.events)
}

// racingStore saves a concurrent change between every load and save.
type racingStore struct {
	*progresstest.MemoryStore
}

func (r racingStore) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, err := r.MemoryStore.Get(ctx, userID)
	if p != nil {
		_, _ = r.MemoryStore.Save(ctx, userID, progress.Patch{})
	}
	return p, err
}

func TestRecordActivity_ConcurrentModification(t *testing.T) {
	f := newFixture(t)
	f.seed(func(*progress.UserProgress) {})
	f.deps.Store = racingStore{f.store}

	_, err := NewRecordActivityHandler(f.deps).Handle(context.Background(),
		RecordActivityCommand{UserID: "u1", Type: ActivityTypeVisit})

	assert.True(t, shared.IsConflict(err))
	assert.Empty(t, f.events.events)
}
