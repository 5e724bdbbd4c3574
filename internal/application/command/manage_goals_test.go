package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

func TestManageGoal_CustomGoalLifecycle(t *testing.T) {
	f := newFixture(t)

	created := f.goal(t, ManageGoalCommand{
		UserID: "u1",
		Action: GoalActionCreate,
		Input:  progress.GoalInput{Title: " Read ", Target: 2, Unit: "books"},
	})
	require.NotNil(t, created.Goal)
	assert.Equal(t, "Read", created.Goal.Title)
	assert.True(t, created.Goal.IsCustom)
	assert.Equal(t, "Read: reach 2 books", created.Goal.Description)
	f.events.reset()

	done := f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionUpdateProgress, GoalID: created.Goal.ID, Current: 2})

	assert.True(t, done.Goal.Completed)
	assert.True(t, done.Progress.Achievements["goal-setter"].Earned)
	assert.Equal(t, 75, done.Progress.TotalPoints)
	assert.Equal(t, []shared.EventType{shared.EventGoalCompleted, shared.EventAchievementUnlock}, f.events.types())
	f.events.reset()

	again := f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionComplete, GoalID: created.Goal.ID})

	assert.False(t, again.Saved)
	assert.Equal(t, 75, again.Progress.TotalPoints)
	assert.Empty(t, f.events.events)
}

func TestManageGoal_EditKeepsProgress(t *testing.T) {
	f := newFixture(t)
	created := f.goal(t, ManageGoalCommand{
		UserID: "u1", Action: GoalActionCreate,
		Input: progress.GoalInput{Title: "Read", Target: 5, Unit: "books"},
	})
	f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionUpdateProgress, GoalID: created.Goal.ID, Current: 3})

	edited := f.goal(t, ManageGoalCommand{
		UserID: "u1", Action: GoalActionEdit, GoalID: created.Goal.ID,
		Input: progress.GoalInput{Title: "Read more", Target: 10, Unit: "books"},
	})

	assert.Equal(t, 3, edited.Goal.Current)
	assert.False(t, edited.Goal.Completed)
	assert.Equal(t, "Read more: reach 10 books", edited.Goal.Description)
}

func TestManageGoal_SuggestAndRemove(t *testing.T) {
	f := newFixture(t)

	res := f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionSuggest})

	require.NotNil(t, res.Goal)
	assert.Equal(t, "goal-explore-majors", res.Goal.ID)
	assert.Zero(t, res.Goal.Current)

	res = f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionRemove, GoalID: "goal-explore-majors"})

	assert.Nil(t, res.Goal)
	assert.Empty(t, res.Progress.Goals)
	assert.Empty(t, res.Progress.Activities)
}

func TestManageGoal_SuggestedGoalCompletesFromActivity(t *testing.T) {
	f := newFixture(t)
	f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionSuggest})
	f.goal(t, ManageGoalCommand{UserID: "u1", Action: GoalActionSuggest})
	f.events.reset()

	for _, id := range []string{"r1", "r2", "r3"} {
		f.record(t, RecordActivityCommand{UserID: "u1", Type: ActivityTypeViewRoadmap, RoadmapID: id})
	}

	p, err := f.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, p.Goals, 2)
	assert.Equal(t, "goal-view-roadmaps", p.Goals[1].ID)
	assert.True(t, p.Goals[1].Completed)
	assert.Equal(t, 3, p.Goals[1].Current)
	assert.Contains(t, f.events.types(), shared.EventGoalCompleted)
}

func TestManageGoal_Errors(t *testing.T) {
	f := newFixture(t)
	h := NewManageGoalHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, ManageGoalCommand{UserID: "u1", Action: GoalActionComplete, GoalID: "missing"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, ManageGoalCommand{UserID: "u1", Action: GoalActionCreate, Input: progress.GoalInput{Title: "", Target: 1, Unit: "x"}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, ManageGoalCommand{UserID: "u1", Action: GoalActionEdit})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, ManageGoalCommand{UserID: "u1", Action: "archive"})
	assert.True(t, shared.IsValidation(err))

	require.NoError(t, f.features.SetRolloutPercent(config.FeatureGoals, 0))
	_, err = h.Handle(ctx, ManageGoalCommand{UserID: "u1", Action: GoalActionSuggest})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
