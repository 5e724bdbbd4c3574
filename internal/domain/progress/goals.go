package progress

import (
	"fmt"
	"strings"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Goal is a target/current/unit tuple. Suggested goals carry the catalog
// Metric they track; custom goals have an empty Metric.
type Goal struct {
	// ID is unique within the record.
	ID string `json:"id" bson:"id"`

	// Title is the display name.
	Title string `json:"title" bson:"title"`

	// Description is generated from title, target and unit.
	Description string `json:"description" bson:"description"`

	// Target is at least 1.
	Target int `json:"target" bson:"target"`

	// Current is live for suggested goals and caller-supplied for custom ones.
	Current int `json:"current" bson:"current"`

	// Unit labels Target and Current.
	Unit string `json:"unit" bson:"unit"`

	// Completed holds iff Current >= Target. Completed goals are frozen.
	Completed bool `json:"completed" bson:"completed"`

	// Category groups goals for display.
	Category string `json:"category" bson:"category"`

	// IsCustom marks user-authored goals.
	IsCustom bool `json:"isCustom" bson:"isCustom"`

	// Metric is the tracked value for suggested goals.
	Metric Metric `json:"metric,omitempty" bson:"metric,omitempty"`
}

// CustomGoalCategory is the category assigned to user-authored goals.
const CustomGoalCategory = "personal"

// GoalInput is the caller-provided part of a custom goal.
type GoalInput struct {
	Title  string
	Target int
	Unit   string
}

// Validate checks the input and returns a normalized copy.
func (in GoalInput) Validate(op string) (GoalInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Title == "" {
		return in, shared.ValidationError("goal", op, "title cannot be empty")
	}
	if in.Unit == "" {
		return in, shared.ValidationError("goal", op, "unit cannot be empty")
	}
	if in.Target < 1 {
		return in, shared.ValidationError("goal", op, "target must be at least 1")
	}
	return in, nil
}

func describeGoal(title string, target int, unit string) string {
	return fmt.Sprintf("%s: reach %d %s", title, target, unit)
}

// RefreshGoals overwrites Current of every open suggested goal from its live
// metric and completes the ones that crossed their target. Custom goals are
// left alone. Returns the ids of goals completed by this refresh.
func RefreshGoals(p *UserProgress, env Env) []string {
	var completed []string
	for i := range p.Goals {
		g := &p.Goals[i]
		if g.IsCustom || g.Completed || !g.Metric.IsKnown() {
			continue
		}
		g.Current = g.Metric.Value(p)
		if g.Current >= g.Target {
			markCompleted(p, env, i)
			completed = append(completed, g.ID)
		}
	}
	return completed
}

// Settle runs the derived-state passes in order: goals, achievements, and
// goals again so a level reached through achievement points is reflected.
func Settle(p *UserProgress, env Env) (goalsCompleted, achievementsUnlocked []string) {
	goalsCompleted = RefreshGoals(p, env)
	_, achievementsUnlocked = EvaluateAchievements(p, env)
	goalsCompleted = append(goalsCompleted, RefreshGoals(p, env)...)
	return goalsCompleted, achievementsUnlocked
}

// SuggestGoal adds the first catalog goal not already present. Returns nil
// when the catalog is exhausted.
func SuggestGoal(p *UserProgress, env Env) *Goal {
	for _, def := range env.Catalog.SuggestedGoals {
		if goalIndex(p, def.ID) >= 0 {
			continue
		}
		p.Goals = append(p.Goals, Goal{
			ID:          def.ID,
			Title:       def.Title,
			Description: describeGoal(def.Title, def.Target, def.Unit),
			Target:      def.Target,
			Unit:        def.Unit,
			Category:    def.Category,
			Metric:      def.Metric,
		})
		RefreshGoals(p, env)
		g := p.Goals[len(p.Goals)-1]
		return &g
	}
	return nil
}

// CreateGoal appends a custom goal with Current = 0.
func CreateGoal(p *UserProgress, env Env, in GoalInput) (*Goal, error) {
	in, err := in.Validate("CreateGoal")
	if err != nil {
		return nil, err
	}
	g := Goal{
		ID:          env.NewID(),
		Title:       in.Title,
		Description: describeGoal(in.Title, in.Target, in.Unit),
		Target:      in.Target,
		Unit:        in.Unit,
		Category:    CustomGoalCategory,
		IsCustom:    true,
	}
	p.Goals = append(p.Goals, g)
	return &g, nil
}

// CompleteGoal forces a goal to completed with Current = Target. Completing
// an already completed goal changes nothing and awards nothing.
func CompleteGoal(p *UserProgress, env Env, goalID string) (*Goal, error) {
	i := goalIndex(p, goalID)
	if i < 0 {
		return nil, shared.ErrGoalNotFound
	}
	if !p.Goals[i].Completed {
		markCompleted(p, env, i)
	}
	g := p.Goals[i]
	return &g, nil
}

// RemoveGoal deletes a goal. No activity is logged.
func RemoveGoal(p *UserProgress, goalID string) error {
	i := goalIndex(p, goalID)
	if i < 0 {
		return shared.ErrGoalNotFound
	}
	p.Goals = append(p.Goals[:i], p.Goals[i+1:]...)
	return nil
}

// EditGoal changes title, target and unit and regenerates the description.
// Current and Completed are kept; a completed goal stays completed with
// Current following the new Target, and an open custom goal whose Current
// already meets the new Target completes.
func EditGoal(p *UserProgress, env Env, goalID string, in GoalInput) (*Goal, error) {
	in, err := in.Validate("EditGoal")
	if err != nil {
		return nil, err
	}
	i := goalIndex(p, goalID)
	if i < 0 {
		return nil, shared.ErrGoalNotFound
	}

	g := &p.Goals[i]
	g.Title = in.Title
	g.Target = in.Target
	g.Unit = in.Unit
	g.Description = describeGoal(in.Title, in.Target, in.Unit)

	switch {
	case g.Completed:
		g.Current = g.Target
	case g.IsCustom && g.Current >= g.Target:
		markCompleted(p, env, i)
	case !g.IsCustom:
		RefreshGoals(p, env)
	}
	out := p.Goals[i]
	return &out, nil
}

// UpdateGoalProgress sets Current of a custom goal. Reaching the target
// completes it. Completed and suggested goals cannot be updated this way.
func UpdateGoalProgress(p *UserProgress, env Env, goalID string, current int) (*Goal, error) {
	i := goalIndex(p, goalID)
	if i < 0 {
		return nil, shared.ErrGoalNotFound
	}
	g := &p.Goals[i]
	if !g.IsCustom {
		return nil, shared.ValidationError("goal", "UpdateGoalProgress", "suggested goals track their metric automatically")
	}
	if current < 0 {
		return nil, shared.ValidationError("goal", "UpdateGoalProgress", "current cannot be negative")
	}
	if !g.Completed {
		g.Current = current
		if g.Current >= g.Target {
			markCompleted(p, env, i)
		}
	}
	out := p.Goals[i]
	return &out, nil
}

// markCompleted is the single completion path: it fixes Current at Target,
// logs the activity and awards the completion points exactly once.
func markCompleted(p *UserProgress, env Env, i int) {
	g := &p.Goals[i]
	if g.Completed {
		return
	}
	g.Completed = true
	g.Current = g.Target
	points := env.Catalog.GoalCompletionPoints
	appendActivity(p, env, "Completed goal "+g.Title, CategoryGoal, points)
	AwardPoints(p, env.Catalog.LevelThresholds, points)
}

func goalIndex(p *UserProgress, goalID string) int {
	for i, g := range p.Goals {
		if g.ID == goalID {
			return i
		}
	}
	return -1
}
