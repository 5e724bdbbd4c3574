package progress

import "github.com/majorpath/majorpath-hub/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyTarget caps the weekly progress projection.
const WeeklyTarget = 7

// StreakChange describes what UpdateStreak did.
type StreakChange struct {
	// Updated is false for the same-day no-op.
	Updated bool

	// Broken is true when a running streak was reset by a gap.
	Broken bool

	// Previous is CurrentStreak before the update.
	Previous int
}

// UpdateStreak records activity on today.
//
//   - today == lastActivityDate: no-op
//   - lastActivityDate == yesterday: streak continues
//   - older or empty: streak restarts at 1
//
// A lastActivityDate after today (clock moved backwards) is also a no-op.
func UpdateStreak(p *UserProgress, today shared.Day) StreakChange {
	change := StreakChange{Previous: p.CurrentStreak}

	last := p.LastActivityDate
	if last == today || (!last.IsZero() && today.Before(last)) {
		return change
	}

	switch {
	case !last.IsZero() && last == today.Previous():
		p.CurrentStreak++
	default:
		change.Broken = p.CurrentStreak > 0
		p.CurrentStreak = 1
	}

	p.TotalDaysActive++
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	p.LastActivityDate = today
	change.Updated = true
	return change
}

// WeeklyProgress is min(currentStreak, 7). It is not a calendar week window.
func WeeklyProgress(p *UserProgress) int {
	return min(p.CurrentStreak, WeeklyTarget)
}

// StreakView is the read projection of the streak fields.
type StreakView struct {
	CurrentStreak    int        `json:"currentStreak"`
	LongestStreak    int        `json:"longestStreak"`
	LastActivityDate shared.Day `json:"lastActivityDate"`
	TotalDaysActive  int        `json:"totalDaysActive"`
	WeeklyProgress   int        `json:"weeklyProgress"`
	WeeklyTarget     int        `json:"weeklyTarget"`
	ActiveToday      bool       `json:"activeToday"`
}

// Streak builds the streak projection for display.
func Streak(p *UserProgress, today shared.Day) StreakView {
	return StreakView{
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		LastActivityDate: p.LastActivityDate,
		TotalDaysActive:  p.TotalDaysActive,
		WeeklyProgress:   WeeklyProgress(p),
		WeeklyTarget:     WeeklyTarget,
		ActiveToday:      p.LastActivityDate == today,
	}
}
