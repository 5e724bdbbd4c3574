package progress

import "github.com/majorpath/majorpath-hub/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE SEQUENCER
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeView is the current welcome challenge as shown to the user.
type ChallengeView struct {
	ChallengeDefinition
	Index          int  `json:"index"`
	Total          int  `json:"total"`
	CompletedToday bool `json:"completedToday"`
}

// CurrentChallenge returns the challenge at WelcomeChallengesCompleted, or
// nil once the sequence is exhausted.
func CurrentChallenge(p *UserProgress, catalog *Catalog, today shared.Day) *ChallengeView {
	idx := p.WelcomeChallengesCompleted
	if idx < 0 || idx >= len(catalog.Challenges) {
		return nil
	}
	return &ChallengeView{
		ChallengeDefinition: catalog.Challenges[idx],
		Index:               idx,
		Total:               len(catalog.Challenges),
		CompletedToday:      p.LastWelcomeChallengeDate == today,
	}
}

// CompleteChallenge advances the sequence by one. It does nothing when the
// sequence is exhausted or a challenge was already completed today, so the
// sequence moves at most once per calendar day.
//
// Returns the completed challenge and true when the sequence advanced.
func CompleteChallenge(p *UserProgress, env Env) (*ChallengeDefinition, bool) {
	cur := CurrentChallenge(p, env.Catalog, env.Today)
	if cur == nil || cur.CompletedToday {
		return nil, false
	}

	def := cur.ChallengeDefinition
	p.WelcomeChallengesCompleted++
	p.LastWelcomeChallengeDate = env.Today
	appendActivity(p, env, "Completed challenge "+def.Title, CategoryChallenge, def.Points)
	AwardPoints(p, env.Catalog.LevelThresholds, def.Points)
	return &def, true
}
