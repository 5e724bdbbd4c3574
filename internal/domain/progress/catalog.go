package progress

import (
	"fmt"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metric selects which live value of a record an achievement or a suggested
// goal tracks.
type Metric string

const (
	MetricMajorsExplored       Metric = "majors_explored"
	MetricRoadmapsViewed       Metric = "roadmaps_viewed"
	MetricAssessmentsTaken     Metric = "assessments_taken"
	MetricCurrentStreak        Metric = "current_streak"
	MetricCustomGoalsCompleted Metric = "custom_goals_completed"
	MetricLevel                Metric = "level"
)

// Value extracts the metric from p. Unknown metrics read as 0.
func (m Metric) Value(p *UserProgress) int {
	switch m {
	case MetricMajorsExplored:
		return len(p.MajorsExplored)
	case MetricRoadmapsViewed:
		return len(p.RoadmapsViewed)
	case MetricAssessmentsTaken:
		return len(p.AssessmentsTaken)
	case MetricCurrentStreak:
		return p.CurrentStreak
	case MetricCustomGoalsCompleted:
		n := 0
		for _, g := range p.Goals {
			if g.IsCustom && g.Completed {
				n++
			}
		}
		return n
	case MetricLevel:
		return p.Level
	default:
		return 0
	}
}

// IsKnown reports whether m is one of the defined metrics.
func (m Metric) IsKnown() bool {
	switch m {
	case MetricMajorsExplored, MetricRoadmapsViewed, MetricAssessmentsTaken,
		MetricCurrentStreak, MetricCustomGoalsCompleted, MetricLevel:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Rarity is the tier of an achievement.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// AchievementDefinition describes one catalog achievement.
type AchievementDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Requirement int    `json:"requirement" yaml:"requirement"`
	Points      int    `json:"points" yaml:"points"`
	Rarity      Rarity `json:"rarity" yaml:"rarity"`
	Metric      Metric `json:"metric" yaml:"metric"`
}

// GoalDefinition describes one suggested goal. IDs are stable and never
// derived from the display title.
type GoalDefinition struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Target   int    `json:"target" yaml:"target"`
	Unit     string `json:"unit" yaml:"unit"`
	Category string `json:"category" yaml:"category"`
	Metric   Metric `json:"metric" yaml:"metric"`
}

// ChallengeDefinition describes one welcome challenge.
type ChallengeDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Points      int    `json:"points" yaml:"points"`
}

// Catalog is the static, read-only configuration of the engine.
type Catalog struct {
	// Achievements in display order.
	Achievements []AchievementDefinition `json:"achievements" yaml:"achievements"`

	// SuggestedGoals in suggestion order.
	SuggestedGoals []GoalDefinition `json:"suggested_goals" yaml:"suggested_goals"`

	// Challenges in the strict order they must be completed.
	Challenges []ChallengeDefinition `json:"challenges" yaml:"challenges"`

	// LevelThresholds[i] is the experience needed to reach level i+1.
	LevelThresholds []int `json:"level_thresholds" yaml:"level_thresholds"`

	// GoalCompletionPoints is awarded once per completed goal.
	GoalCompletionPoints int `json:"goal_completion_points" yaml:"goal_completion_points"`
}

// Achievement looks up an achievement definition by id.
func (c *Catalog) Achievement(id string) (AchievementDefinition, bool) {
	for _, def := range c.Achievements {
		if def.ID == id {
			return def, true
		}
	}
	return AchievementDefinition{}, false
}

// Validate checks the catalog for the properties the engine relies on.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{})
	unique := func(kind, id string) error {
		if id == "" {
			return shared.ValidationError("catalog", "Validate", kind+" id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return shared.ValidationError("catalog", "Validate", fmt.Sprintf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
		return nil
	}

	for _, a := range c.Achievements {
		if err := unique("achievement", a.ID); err != nil {
			return err
		}
		if a.Requirement < 1 {
			return shared.ValidationError("catalog", "Validate", fmt.Sprintf("achievement %q requirement must be >= 1", a.ID))
		}
		if !a.Metric.IsKnown() {
			return shared.ValidationError("catalog", "Validate", fmt.Sprintf("achievement %q has unknown metric %q", a.ID, a.Metric))
		}
		switch a.Rarity {
		case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		default:
			return shared.ValidationError("catalog", "Validate", fmt.Sprintf("achievement %q has unknown rarity %q", a.ID, a.Rarity))
		}
	}
	for _, g := range c.SuggestedGoals {
		if err := unique("goal", g.ID); err != nil {
			return err
		}
		if g.Target < 1 || !g.Metric.IsKnown() {
			return shared.ValidationError("catalog", "Validate", fmt.Sprintf("suggested goal %q needs target >= 1 and a known metric", g.ID))
		}
	}
	for _, ch := range c.Challenges {
		if err := unique("challenge", ch.ID); err != nil {
			return err
		}
	}
	if len(c.LevelThresholds) == 0 || c.LevelThresholds[0] != 0 {
		return shared.ValidationError("catalog", "Validate", "level thresholds must start at 0")
	}
	for i := 1; i < len(c.LevelThresholds); i++ {
		if c.LevelThresholds[i] <= c.LevelThresholds[i-1] {
			return shared.ValidationError("catalog", "Validate", "level thresholds must be strictly increasing")
		}
	}
	return nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Achievements: []AchievementDefinition{
			{"first-major", "First Steps", "Explore your first major", 1, 10, RarityCommon, MetricMajorsExplored},
			{"major-explorer", "Explorer", "Explore 5 majors", 5, 50, RarityRare, MetricMajorsExplored},
			{"major-master", "Cartographer", "Explore 10 majors", 10, 150, RarityEpic, MetricMajorsExplored},
			{"roadmap-reader", "Roadmap Reader", "View your first roadmap", 1, 10, RarityCommon, MetricRoadmapsViewed},
			{"roadmap-scholar", "Roadmap Scholar", "View 5 roadmaps", 5, 75, RarityRare, MetricRoadmapsViewed},
			{"first-assessment", "Self Aware", "Complete your first assessment", 1, 20, RarityCommon, MetricAssessmentsTaken},
			{"assessment-ace", "Assessment Ace", "Complete 5 assessments", 5, 100, RarityEpic, MetricAssessmentsTaken},
			{"streak-3", "Warming Up", "Stay active 3 days in a row", 3, 30, RarityCommon, MetricCurrentStreak},
			{"streak-7", "Week of Focus", "Stay active 7 days in a row", 7, 100, RarityRare, MetricCurrentStreak},
			{"streak-30", "Unstoppable", "Stay active 30 days in a row", 30, 500, RarityLegendary, MetricCurrentStreak},
			{"goal-setter", "Goal Setter", "Complete your first custom goal", 1, 25, RarityCommon, MetricCustomGoalsCompleted},
			{"goal-crusher", "Goal Crusher", "Complete 5 custom goals", 5, 150, RarityEpic, MetricCustomGoalsCompleted},
		},
		SuggestedGoals: []GoalDefinition{
			{"goal-explore-majors", "Explore 5 majors", 5, "majors", "exploration", MetricMajorsExplored},
			{"goal-view-roadmaps", "View 3 roadmaps", 3, "roadmaps", "learning", MetricRoadmapsViewed},
			{"goal-streak-days", "Keep a 7 day streak", 7, "days", "engagement", MetricCurrentStreak},
			{"goal-reach-level", "Reach level 3", 3, "level", "progression", MetricLevel},
		},
		Challenges: []ChallengeDefinition{
			{"welcome-first-major", "Pick a starting point", "Open any major that sounds interesting", 20},
			{"welcome-first-roadmap", "Follow the path", "Read through one roadmap from start to finish", 20},
			{"welcome-first-assessment", "Know yourself", "Take your first interest assessment", 30},
			{"welcome-first-goal", "Aim", "Set a goal of your own", 25},
			{"welcome-compare", "Compare options", "Explore a second major and compare it with the first", 30},
			{"welcome-review", "Look back", "Review your progress dashboard", 25},
			{"welcome-week", "One week in", "Come back for the last onboarding step", 50},
		},
		LevelThresholds:      []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000},
		GoalCompletionPoints: 50,
	}
}
