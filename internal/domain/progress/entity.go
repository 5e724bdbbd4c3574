package progress

import (
	"maps"
	"slices"
	"time"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENV
// ══════════════════════════════════════════════════════════════════════════════

// Env bundles the inputs every mutator needs besides the record itself.
type Env struct {
	// Catalog holds achievements, suggested goals, challenges and levels.
	Catalog *Catalog

	// Today is the current calendar day (YYYY-MM-DD) from the injected clock.
	Today shared.Day

	// Now is the current instant from the same clock, used for timestamps.
	Now time.Time

	// NewID generates identifiers for activities and custom goals.
	NewID func() string
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS (aggregate root)
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress is the single per-user record every component reads and writes.
type UserProgress struct {
	// UserID owns the record.
	UserID string `json:"userId" bson:"_id"`

	// MajorsExplored is a set of catalog major ids.
	MajorsExplored []string `json:"majorsExplored" bson:"majorsExplored"`

	// RoadmapsViewed is a set of catalog roadmap ids.
	RoadmapsViewed []string `json:"roadmapsViewed" bson:"roadmapsViewed"`

	// AssessmentsTaken lists completed assessments.
	AssessmentsTaken []AssessmentRecord `json:"assessmentsTaken" bson:"assessmentsTaken"`

	// MajorProgress maps major id to percent complete (0-100).
	MajorProgress map[string]float64 `json:"majorProgress" bson:"majorProgress"`

	// Achievements is write-once per id.
	Achievements map[string]AchievementState `json:"achievements" bson:"achievements"`

	// Goals is ordered by insertion.
	Goals []Goal `json:"goals" bson:"goals"`

	// Activities is the bounded most-recent window, ascending by timestamp.
	Activities []Activity `json:"activities" bson:"activities"`

	// CurrentStreak counts consecutive active days ending at LastActivityDate.
	CurrentStreak int `json:"currentStreak" bson:"currentStreak"`

	// LongestStreak is the maximum CurrentStreak ever reached.
	LongestStreak int `json:"longestStreak" bson:"longestStreak"`

	// LastActivityDate is the last day the streak was updated.
	LastActivityDate shared.Day `json:"lastActivityDate" bson:"lastActivityDate"`

	// TotalDaysActive counts distinct active days.
	TotalDaysActive int `json:"totalDaysActive" bson:"totalDaysActive"`

	// WelcomeChallengesCompleted is the index of the next welcome challenge.
	WelcomeChallengesCompleted int `json:"welcomeChallengesCompleted" bson:"welcomeChallengesCompleted"`

	// LastWelcomeChallengeDate is the day the last challenge was completed.
	LastWelcomeChallengeDate shared.Day `json:"lastWelcomeChallengeDate" bson:"lastWelcomeChallengeDate"`

	// TotalPoints accumulates every award.
	TotalPoints int `json:"totalPoints" bson:"totalPoints"`

	// Level is derived from Experience through the catalog level table.
	Level int `json:"level" bson:"level"`

	// Experience accumulates the same awards as TotalPoints.
	Experience int `json:"experience" bson:"experience"`

	// Version is incremented by the store on every save.
	Version int64 `json:"version" bson:"version"`

	// CreatedAt is when the record was first created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	// UpdatedAt is when the record was last saved.
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// AssessmentRecord is one completed assessment.
type AssessmentRecord struct {
	ID          string    `json:"id" bson:"id"`
	MajorID     string    `json:"majorId,omitempty" bson:"majorId,omitempty"`
	Score       float64   `json:"score" bson:"score"`
	CompletedAt time.Time `json:"completedAt" bson:"completedAt"`
}

// AchievementState is the stored, write-once half of an achievement.
type AchievementState struct {
	Earned bool       `json:"earned" bson:"earned"`
	Date   shared.Day `json:"date" bson:"date"`
}

// ActivityCategory groups activity log entries for display.
type ActivityCategory string

const (
	CategoryExploration ActivityCategory = "exploration"
	CategoryLearning    ActivityCategory = "learning"
	CategoryAssessment  ActivityCategory = "assessment"
	CategoryAchievement ActivityCategory = "achievement"
	CategoryGoal        ActivityCategory = "goal"
	CategoryChallenge   ActivityCategory = "challenge"
)

// Activity is an append-only log entry.
type Activity struct {
	ID        string           `json:"id" bson:"id"`
	Action    string           `json:"action" bson:"action"`
	Timestamp time.Time        `json:"timestamp" bson:"timestamp"`
	Category  ActivityCategory `json:"category" bson:"category"`
	Points    int              `json:"points,omitempty" bson:"points,omitempty"`
}

// NewUserProgress returns a zero-valued record for a first visit.
func NewUserProgress(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:           userID,
		MajorsExplored:   []string{},
		RoadmapsViewed:   []string{},
		AssessmentsTaken: []AssessmentRecord{},
		MajorProgress:    map[string]float64{},
		Achievements:     map[string]AchievementState{},
		Goals:            []Goal{},
		Activities:       []Activity{},
		Level:            1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy so a unit of work can mutate freely and diff
// against the loaded state.
func (p *UserProgress) Clone() *UserProgress {
	c := *p
	c.MajorsExplored = append([]string{}, p.MajorsExplored...)
	c.RoadmapsViewed = append([]string{}, p.RoadmapsViewed...)
	c.AssessmentsTaken = append([]AssessmentRecord{}, p.AssessmentsTaken...)
	c.Goals = append([]Goal{}, p.Goals...)
	c.Activities = append([]Activity{}, p.Activities...)

	c.MajorProgress = maps.Clone(p.MajorProgress)
	c.Achievements = maps.Clone(p.Achievements)
	c.Normalize()
	return &c
}

// Normalize replaces nil collections with empty ones. Stores call it after
// decoding so callers never have to nil-check.
func (p *UserProgress) Normalize() {
	if p.MajorsExplored == nil {
		p.MajorsExplored = []string{}
	}
	if p.RoadmapsViewed == nil {
		p.RoadmapsViewed = []string{}
	}
	if p.AssessmentsTaken == nil {
		p.AssessmentsTaken = []AssessmentRecord{}
	}
	if p.MajorProgress == nil {
		p.MajorProgress = map[string]float64{}
	}
	if p.Achievements == nil {
		p.Achievements = map[string]AchievementState{}
	}
	if p.Goals == nil {
		p.Goals = []Goal{}
	}
	if p.Activities == nil {
		p.Activities = []Activity{}
	}
	if p.Level < 1 {
		p.Level = 1
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACKED ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ExploreMajor adds majorID to the explored set. Returns false if it was
// already there.
func ExploreMajor(p *UserProgress, env Env, majorID string) bool {
	if slices.Contains(p.MajorsExplored, majorID) {
		return false
	}
	p.MajorsExplored = append(p.MajorsExplored, majorID)
	appendActivity(p, env, "Explored major "+majorID, CategoryExploration, 0)
	return true
}

// ViewRoadmap adds roadmapID to the viewed set. Returns false if it was
// already there.
func ViewRoadmap(p *UserProgress, env Env, roadmapID string) bool {
	if slices.Contains(p.RoadmapsViewed, roadmapID) {
		return false
	}
	p.RoadmapsViewed = append(p.RoadmapsViewed, roadmapID)
	appendActivity(p, env, "Viewed roadmap "+roadmapID, CategoryLearning, 0)
	return true
}

// RecordAssessment appends an assessment record. A repeated assessment id
// is ignored.
func RecordAssessment(p *UserProgress, env Env, rec AssessmentRecord) bool {
	for _, existing := range p.AssessmentsTaken {
		if existing.ID == rec.ID {
			return false
		}
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = env.Now
	}
	p.AssessmentsTaken = append(p.AssessmentsTaken, rec)
	appendActivity(p, env, "Completed assessment "+rec.ID, CategoryAssessment, 0)
	return true
}

// SetMajorProgress stores the clamped completion percent for a major.
func SetMajorProgress(p *UserProgress, majorID string, percent float64) {
	p.MajorProgress[majorID] = shared.ClampPercent(percent).Float64()
}

// AwardPoints adds points to both accumulators and recomputes the level.
// It is the only place points enter a record.
func AwardPoints(p *UserProgress, levels []int, points int) {
	if points <= 0 {
		return
	}
	p.TotalPoints += points
	p.Experience += points
	p.Level = LevelForExperience(levels, p.Experience)
}

func appendActivity(p *UserProgress, env Env, action string, category ActivityCategory, points int) {
	ts := env.Now
	if n := len(p.Activities); n > 0 && p.Activities[n-1].Timestamp.After(ts) {
		// keep the log ascending under clock skew
		ts = p.Activities[n-1].Timestamp
	}
	p.Activities = append(p.Activities, Activity{
		ID:        env.NewID(),
		Action:    action,
		Timestamp: ts,
		Category:  category,
		Points:    points,
	})
}

