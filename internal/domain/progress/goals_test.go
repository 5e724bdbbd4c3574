package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

func TestSuggestGoal_InCatalogOrderThenExhausted(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)

	var ids []string
	for {
		g := SuggestGoal(p, env)
		if g == nil {
			break
		}
		ids = append(ids, g.ID)
	}

	assert.Equal(t, []string{"goal-explore-majors", "goal-view-roadmaps", "goal-streak-days", "goal-reach-level"}, ids)
	assert.Len(t, p.Goals, 4)
	assert.Nil(t, SuggestGoal(p, env))
}

func TestSuggestGoal_SkipsRemovedButPresentIDs(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	SuggestGoal(p, env)
	SuggestGoal(p, env)
	require.NoError(t, RemoveGoal(p, "goal-explore-majors"))

	g := SuggestGoal(p, env)

	require.NotNil(t, g)
	assert.Equal(t, "goal-explore-majors", g.ID)
}

func TestCreateGoal_Validation(t *testing.T) {
	env := testEnv("2025-03-01")
	tests := []struct {
		name string
		in   GoalInput
	}{
		{"empty title", GoalInput{Title: "  ", Target: 3, Unit: "books"}},
		{"empty unit", GoalInput{Title: "Read", Target: 3, Unit: ""}},
		{"zero target", GoalInput{Title: "Read", Target: 0, Unit: "books"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newRecord(t)
			g, err := CreateGoal(p, env, tt.in)
			assert.Nil(t, g)
			assert.True(t, shared.IsValidation(err))
			assert.Empty(t, p.Goals, "no mutation on validation failure")
		})
	}
}

func TestCreateGoal_AppendsCustomGoal(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)

	g, err := CreateGoal(p, env, GoalInput{Title: "Read books", Target: 3, Unit: "books"})

	require.NoError(t, err)
	assert.True(t, g.IsCustom)
	assert.Equal(t, 0, g.Current)
	assert.Equal(t, CustomGoalCategory, g.Category)
	assert.Equal(t, "Read books: reach 3 books", g.Description)
	assert.Len(t, p.Goals, 1)
}

func TestCompleteGoal_AwardsOnce(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g, err := CreateGoal(p, env, GoalInput{Title: "Read", Target: 4, Unit: "books"})
	require.NoError(t, err)

	done, err := CompleteGoal(p, env, g.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, done.Target, done.Current)
	assert.Equal(t, 50, p.TotalPoints)
	activities := len(p.Activities)

	_, err = CompleteGoal(p, env, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, p.TotalPoints)
	assert.Len(t, p.Activities, activities)
}

func TestGoalOperations_NotFound(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)

	_, err := CompleteGoal(p, env, "missing")
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(RemoveGoal(p, "missing")))
	_, err = EditGoal(p, env, "missing", GoalInput{Title: "x", Target: 1, Unit: "y"})
	assert.True(t, shared.IsNotFound(err))
	_, err = UpdateGoalProgress(p, env, "missing", 1)
	assert.True(t, shared.IsNotFound(err))
}

func TestRemoveGoal_LogsNothing(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g, _ := CreateGoal(p, env, GoalInput{Title: "Read", Target: 4, Unit: "books"})

	require.NoError(t, RemoveGoal(p, g.ID))
	assert.Empty(t, p.Goals)
	assert.Empty(t, p.Activities)
}

func TestEditGoal_KeepsProgress(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g, _ := CreateGoal(p, env, GoalInput{Title: "Read", Target: 10, Unit: "books"})
	_, err := UpdateGoalProgress(p, env, g.ID, 4)
	require.NoError(t, err)

	edited, err := EditGoal(p, env, g.ID, GoalInput{Title: "Read more", Target: 12, Unit: "novels"})

	require.NoError(t, err)
	assert.Equal(t, 4, edited.Current)
	assert.False(t, edited.Completed)
	assert.Equal(t, "Read more: reach 12 novels", edited.Description)
}

func TestEditGoal_CompletedStaysCompleted(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g, _ := CreateGoal(p, env, GoalInput{Title: "Read", Target: 2, Unit: "books"})
	_, _ = CompleteGoal(p, env, g.ID)

	edited, err := EditGoal(p, env, g.ID, GoalInput{Title: "Read", Target: 5, Unit: "books"})

	require.NoError(t, err)
	assert.True(t, edited.Completed)
	assert.Equal(t, 5, edited.Current)
	assert.Equal(t, 50, p.TotalPoints, "editing never re-awards")
}

func TestEditGoal_LoweringTargetCompletes(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g, _ := CreateGoal(p, env, GoalInput{Title: "Run", Target: 10, Unit: "km"})
	_, _ = UpdateGoalProgress(p, env, g.ID, 6)

	edited, err := EditGoal(p, env, g.ID, GoalInput{Title: "Run", Target: 5, Unit: "km"})

	require.NoError(t, err)
	assert.True(t, edited.Completed)
	assert.Equal(t, 5, edited.Current)
}

func TestUpdateGoalProgress_RejectsSuggestedGoals(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	g := SuggestGoal(p, env)

	_, err := UpdateGoalProgress(p, env, g.ID, 3)
	assert.True(t, shared.IsValidation(err))
}

func TestRefreshGoals_PullsLiveMetrics(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	SuggestGoal(p, env)
	SuggestGoal(p, env)
	custom, _ := CreateGoal(p, env, GoalInput{Title: "Read", Target: 3, Unit: "books"})
	_, _ = UpdateGoalProgress(p, env, custom.ID, 2)

	ExploreMajor(p, env, "a")
	ExploreMajor(p, env, "b")
	ViewRoadmap(p, env, "r1")
	p.Goals[0].Current = 99 // stale value self-corrects

	completed := RefreshGoals(p, env)

	assert.Empty(t, completed)
	assert.Equal(t, 2, p.Goals[0].Current)
	assert.Equal(t, 1, p.Goals[1].Current)
	assert.Equal(t, 2, p.Goals[2].Current, "custom goals are untouched")
}

func TestRefreshGoals_CompletesAndFreezes(t *testing.T) {
	env := testEnv("2025-03-07")
	p := newRecord(t)
	SuggestGoal(p, env)
	SuggestGoal(p, env)
	SuggestGoal(p, env) // goal-streak-days
	p.CurrentStreak = 7
	p.TotalDaysActive = 7

	completed := RefreshGoals(p, env)
	assert.Equal(t, []string{"goal-streak-days"}, completed)
	assert.Equal(t, 50, p.TotalPoints)

	p.CurrentStreak = 1
	RefreshGoals(p, env)

	streakGoal := p.Goals[2]
	assert.True(t, streakGoal.Completed)
	assert.Equal(t, streakGoal.Target, streakGoal.Current)
	assert.Equal(t, 50, p.TotalPoints)
}

func TestGoalInvariant_CompletedIffCurrentMeetsTarget(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	for SuggestGoal(p, env) != nil {
	}
	g, _ := CreateGoal(p, env, GoalInput{Title: "Read", Target: 2, Unit: "books"})
	_, _ = UpdateGoalProgress(p, env, g.ID, 3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		ExploreMajor(p, env, id)
	}
	Settle(p, env)

	for _, goal := range p.Goals {
		assert.Equal(t, goal.Current >= goal.Target, goal.Completed, "goal %s", goal.ID)
	}
}

func TestSettle_LevelGoalFollowsAchievementPoints(t *testing.T) {
	env := testEnv("2025-03-01")
	p := newRecord(t)
	p.Experience = 245
	p.TotalPoints = 245
	p.Level = LevelForExperience(env.Catalog.LevelThresholds, 245)
	for SuggestGoal(p, env) != nil {
	}
	ExploreMajor(p, env, "a")

	completed, unlocked := Settle(p, env)

	assert.Contains(t, unlocked, "first-major")
	assert.Contains(t, completed, "goal-reach-level")
}
