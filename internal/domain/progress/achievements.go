package progress

import (
	"math"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// AchievementView is the display projection of one catalog achievement.
// ProgressPercent is CurrentValue/Requirement in whole percent, rounded down
// and clamped to 0..100, so an unearned achievement never shows 100. Earned
// achievements always report 100.
type AchievementView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Rarity          Rarity     `json:"rarity"`
	Points          int        `json:"points"`
	Requirement     int        `json:"requirement"`
	Earned          bool       `json:"earned"`
	Date            shared.Day `json:"date,omitempty"`
	CurrentValue    int        `json:"currentValue"`
	ProgressPercent int        `json:"progressPercent"`
}

// EvaluateAchievements unlocks every catalog achievement whose metric has
// reached its requirement. Earned entries are never cleared or re-dated, so
// calling it again is a no-op. Each new unlock appends one activity and
// awards its points once.
//
// Returns the full view list in catalog order and the newly unlocked ids.
func EvaluateAchievements(p *UserProgress, env Env) ([]AchievementView, []string) {
	var unlocked []string
	for _, def := range env.Catalog.Achievements {
		if p.Achievements[def.ID].Earned {
			continue
		}
		if def.Metric.Value(p) < def.Requirement {
			continue
		}
		p.Achievements[def.ID] = AchievementState{Earned: true, Date: env.Today}
		appendActivity(p, env, "Unlocked achievement "+def.Title, CategoryAchievement, def.Points)
		AwardPoints(p, env.Catalog.LevelThresholds, def.Points)
		unlocked = append(unlocked, def.ID)
	}
	return Achievements(p, env.Catalog), unlocked
}

// Achievements builds the read-only view list without unlocking anything.
func Achievements(p *UserProgress, catalog *Catalog) []AchievementView {
	views := make([]AchievementView, 0, len(catalog.Achievements))
	for _, def := range catalog.Achievements {
		state := p.Achievements[def.ID]
		value := def.Metric.Value(p)
		percent := 100
		if !state.Earned {
			percent = progressPercent(value, def.Requirement)
		}
		views = append(views, AchievementView{
			ID:              def.ID,
			Title:           def.Title,
			Description:     def.Description,
			Rarity:          def.Rarity,
			Points:          def.Points,
			Requirement:     def.Requirement,
			Earned:          state.Earned,
			Date:            state.Date,
			CurrentValue:    value,
			ProgressPercent: percent,
		})
	}
	return views
}

// Achievement returns the view of a single achievement.
func Achievement(p *UserProgress, catalog *Catalog, id string) (AchievementView, error) {
	for _, v := range Achievements(p, catalog) {
		if v.ID == id {
			return v, nil
		}
	}
	return AchievementView{}, shared.ErrAchievementNotFound
}

func progressPercent(value, requirement int) int {
	if requirement <= 0 {
		return 100
	}
	pct := math.Floor(float64(value) / float64(requirement) * 100)
	return int(math.Max(0, math.Min(100, pct)))
}
