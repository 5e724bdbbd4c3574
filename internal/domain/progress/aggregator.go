package progress

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Score weights. Downstream thresholds depend on these exact values.
const (
	majorWeight      = 8
	roadmapWeight    = 12
	learningFactor   = 0.6
	assessmentWeight = 20

	explorationShare = 0.4
	learningShare    = 0.4
	assessmentShare  = 0.2
)

// Breakdown holds the clamped sub-scores and their blend.
type Breakdown struct {
	Exploration float64 `json:"exploration"`
	Learning    float64 `json:"learning"`
	Assessment  float64 `json:"assessment"`
	Overall     int     `json:"overall"`
}

// ScoreBreakdown computes every sub-score, each clamped to 100 before blending.
func ScoreBreakdown(p *UserProgress) Breakdown {
	exploration := math.Min(100, float64(len(p.MajorsExplored)*majorWeight+len(p.RoadmapsViewed)*roadmapWeight))

	learning := 0.0
	if len(p.MajorProgress) > 0 {
		sum := 0.0
		for _, v := range p.MajorProgress {
			sum += v
		}
		learning = math.Min(100, sum/float64(len(p.MajorProgress))*learningFactor)
	}

	assessment := math.Min(100, float64(len(p.AssessmentsTaken)*assessmentWeight))

	overall := math.Round(exploration*explorationShare + learning*learningShare + assessment*assessmentShare)
	return Breakdown{
		Exploration: exploration,
		Learning:    learning,
		Assessment:  assessment,
		Overall:     int(math.Max(0, math.Min(100, overall))),
	}
}

// ComputeOverallProgress returns the composite score in [0, 100].
func ComputeOverallProgress(p *UserProgress) int {
	return ScoreBreakdown(p).Overall
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS
// ══════════════════════════════════════════════════════════════════════════════

// LevelForExperience returns the 1-based level for xp: the number of
// thresholds that xp has reached.
func LevelForExperience(thresholds []int, xp int) int {
	level := 0
	for _, t := range thresholds {
		if xp < t {
			break
		}
		level++
	}
	return max(level, 1)
}

// NextLevelAt returns the experience needed for level+1, or -1 at the top.
func NextLevelAt(thresholds []int, level int) int {
	if level < 1 || level >= len(thresholds) {
		return -1
	}
	return thresholds[level]
}

// LevelView is the level/XP projection.
type LevelView struct {
	Level          int `json:"level"`
	Experience     int `json:"experience"`
	CurrentLevelAt int `json:"currentLevelAt"`
	NextLevelAt    int `json:"nextLevelAt"`
	ToNextLevel    int `json:"toNextLevel"`
	PercentToNext  int `json:"percentToNext"`
}

// Level builds the level projection for p.
func Level(p *UserProgress, thresholds []int) LevelView {
	lvl := LevelForExperience(thresholds, p.Experience)
	view := LevelView{
		Level:         lvl,
		Experience:    p.Experience,
		NextLevelAt:   NextLevelAt(thresholds, lvl),
		PercentToNext: 100,
	}
	if lvl-1 < len(thresholds) {
		view.CurrentLevelAt = thresholds[lvl-1]
	}
	if view.NextLevelAt > 0 {
		view.ToNextLevel = view.NextLevelAt - p.Experience
		span := view.NextLevelAt - view.CurrentLevelAt
		view.PercentToNext = (p.Experience - view.CurrentLevelAt) * 100 / span
	}
	return view
}

// Overview is the dashboard summary projection.
type Overview struct {
	MajorsExplored   int `json:"majorsExplored"`
	RoadmapsViewed   int `json:"roadmapsViewed"`
	AssessmentsTaken int `json:"assessmentsTaken"`
	TotalProgress    int `json:"totalProgress"`
	TotalPoints      int `json:"totalPoints"`
	Level            int `json:"level"`
	Experience       int `json:"experience"`
}

// Summarize builds the overview projection. Nothing here is stored.
func Summarize(p *UserProgress) Overview {
	return Overview{
		MajorsExplored:   len(p.MajorsExplored),
		RoadmapsViewed:   len(p.RoadmapsViewed),
		AssessmentsTaken: len(p.AssessmentsTaken),
		TotalProgress:    ComputeOverallProgress(p),
		TotalPoints:      p.TotalPoints,
		Level:            p.Level,
		Experience:       p.Experience,
	}
}
