package progress

import (
	"context"
	"maps"
	"reflect"
	"time"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// DefaultActivityWindow is how many activities a record keeps when the
// store is not configured otherwise.
const DefaultActivityWindow = 50

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the record store the engine depends on.
type Repository interface {
	// Get returns the stored record, or (nil, nil) when the user has none.
	Get(ctx context.Context, userID string) (*UserProgress, error)

	// Create stores a zero-valued record. Creating an existing record returns
	// the stored one unchanged.
	Create(ctx context.Context, userID string) (*UserProgress, error)

	// Save shallow-merges patch over the stored record and returns the result.
	// With patch.ExpectedVersion > 0 the save is a compare-and-swap and fails
	// with shared.ErrConcurrentModification on mismatch.
	Save(ctx context.Context, userID string, patch Patch) (*UserProgress, error)
}

// ActivityFeed reads and appends the activity log.
type ActivityFeed interface {
	// AppendActivity adds one entry to the user's log.
	AppendActivity(ctx context.Context, userID string, activity Activity) error

	// RecentActivities returns up to k entries, newest first.
	RecentActivities(ctx context.Context, userID string, k int) ([]Activity, error)
}

// Store is what a persistence backend provides.
type Store interface {
	Repository
	ActivityFeed
}

// ══════════════════════════════════════════════════════════════════════════════
// PATCH
// ══════════════════════════════════════════════════════════════════════════════

// Patch is a partial record. Nil fields are left untouched by Save.
type Patch struct {
	ExpectedVersion int64 `json:"expectedVersion,omitempty"`

	MajorsExplored   *[]string           `json:"majorsExplored,omitempty"`
	RoadmapsViewed   *[]string           `json:"roadmapsViewed,omitempty"`
	AssessmentsTaken *[]AssessmentRecord `json:"assessmentsTaken,omitempty"`
	MajorProgress    *map[string]float64 `json:"majorProgress,omitempty"`
	Goals            *[]Goal             `json:"goals,omitempty"`

	// Achievements holds newly earned entries only. Stores merge them and
	// never overwrite an existing key.
	Achievements map[string]AchievementState `json:"achievements,omitempty"`

	// NewActivities are appended to the log, then the log is trimmed to the
	// store's window.
	NewActivities []Activity `json:"newActivities,omitempty"`

	CurrentStreak    *int        `json:"currentStreak,omitempty"`
	LongestStreak    *int        `json:"longestStreak,omitempty"`
	LastActivityDate *shared.Day `json:"lastActivityDate,omitempty"`
	TotalDaysActive  *int        `json:"totalDaysActive,omitempty"`

	WelcomeChallengesCompleted *int        `json:"welcomeChallengesCompleted,omitempty"`
	LastWelcomeChallengeDate   *shared.Day `json:"lastWelcomeChallengeDate,omitempty"`

	TotalPoints *int `json:"totalPoints,omitempty"`
	Level       *int `json:"level,omitempty"`
	Experience  *int `json:"experience,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (pt Patch) IsEmpty() bool {
	empty := Patch{ExpectedVersion: pt.ExpectedVersion}
	return reflect.DeepEqual(pt, empty)
}

// Diff returns the patch that turns before into after. after must have been
// derived from a Clone of before; activities are only ever appended.
func Diff(before, after *UserProgress) Patch {
	pt := Patch{ExpectedVersion: before.Version}

	if !reflect.DeepEqual(before.MajorsExplored, after.MajorsExplored) {
		pt.MajorsExplored = ptr(after.MajorsExplored)
	}
	if !reflect.DeepEqual(before.RoadmapsViewed, after.RoadmapsViewed) {
		pt.RoadmapsViewed = ptr(after.RoadmapsViewed)
	}
	if !reflect.DeepEqual(before.AssessmentsTaken, after.AssessmentsTaken) {
		pt.AssessmentsTaken = ptr(after.AssessmentsTaken)
	}
	if !maps.Equal(before.MajorProgress, after.MajorProgress) {
		pt.MajorProgress = ptr(after.MajorProgress)
	}
	if !reflect.DeepEqual(before.Goals, after.Goals) {
		pt.Goals = ptr(after.Goals)
	}
	for id, state := range after.Achievements {
		if _, ok := before.Achievements[id]; ok {
			continue
		}
		if pt.Achievements == nil {
			pt.Achievements = make(map[string]AchievementState)
		}
		pt.Achievements[id] = state
	}
	if n := len(before.Activities); len(after.Activities) > n {
		pt.NewActivities = append([]Activity{}, after.Activities[n:]...)
	}

	pt.CurrentStreak = changed(before.CurrentStreak, after.CurrentStreak)
	pt.LongestStreak = changed(before.LongestStreak, after.LongestStreak)
	pt.LastActivityDate = changed(before.LastActivityDate, after.LastActivityDate)
	pt.TotalDaysActive = changed(before.TotalDaysActive, after.TotalDaysActive)
	pt.WelcomeChallengesCompleted = changed(before.WelcomeChallengesCompleted, after.WelcomeChallengesCompleted)
	pt.LastWelcomeChallengeDate = changed(before.LastWelcomeChallengeDate, after.LastWelcomeChallengeDate)
	pt.TotalPoints = changed(before.TotalPoints, after.TotalPoints)
	pt.Level = changed(before.Level, after.Level)
	pt.Experience = changed(before.Experience, after.Experience)
	return pt
}

// ApplyPatch merges pt into p the way every store must: non-nil fields
// replace, achievements merge without overwriting, activities append and
// are trimmed to the most recent window entries. It bumps Version and
// UpdatedAt. Version checks are the store's job.
func ApplyPatch(p *UserProgress, pt Patch, window int, now time.Time) {
	if pt.MajorsExplored != nil {
		p.MajorsExplored = append([]string{}, (*pt.MajorsExplored)...)
	}
	if pt.RoadmapsViewed != nil {
		p.RoadmapsViewed = append([]string{}, (*pt.RoadmapsViewed)...)
	}
	if pt.AssessmentsTaken != nil {
		p.AssessmentsTaken = append([]AssessmentRecord{}, (*pt.AssessmentsTaken)...)
	}
	if pt.MajorProgress != nil {
		p.MajorProgress = maps.Clone(*pt.MajorProgress)
	}
	if pt.Goals != nil {
		p.Goals = append([]Goal{}, (*pt.Goals)...)
	}
	if p.Achievements == nil {
		p.Achievements = make(map[string]AchievementState, len(pt.Achievements))
	}
	for id, state := range pt.Achievements {
		if _, ok := p.Achievements[id]; !ok {
			p.Achievements[id] = state
		}
	}
	if len(pt.NewActivities) > 0 {
		p.Activities = TrimActivities(append(p.Activities, pt.NewActivities...), window)
	}

	assign(&p.CurrentStreak, pt.CurrentStreak)
	assign(&p.LongestStreak, pt.LongestStreak)
	assign(&p.LastActivityDate, pt.LastActivityDate)
	assign(&p.TotalDaysActive, pt.TotalDaysActive)
	assign(&p.WelcomeChallengesCompleted, pt.WelcomeChallengesCompleted)
	assign(&p.LastWelcomeChallengeDate, pt.LastWelcomeChallengeDate)
	assign(&p.TotalPoints, pt.TotalPoints)
	assign(&p.Level, pt.Level)
	assign(&p.Experience, pt.Experience)

	p.Version++
	p.UpdatedAt = now
	p.Normalize()
}

// TrimActivities keeps the last window entries. window <= 0 keeps all.
func TrimActivities(activities []Activity, window int) []Activity {
	if window <= 0 || len(activities) <= window {
		return activities
	}
	return append([]Activity{}, activities[len(activities)-window:]...)
}

// NewestFirst returns up to k activities from an ascending log, newest first.
func NewestFirst(activities []Activity, k int) []Activity {
	if k <= 0 || k > len(activities) {
		k = len(activities)
	}
	out := make([]Activity, 0, k)
	for i := len(activities) - 1; i >= 0 && len(out) < k; i-- {
		out = append(out, activities[i])
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func changed[T comparable](before, after T) *T {
	if before == after {
		return nil
	}
	return &after
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
