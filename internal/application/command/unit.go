// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/logger"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// FeatureGate reports whether a gamification feature is on for a user.
// *config.FeatureFlags satisfies it.
type FeatureGate interface {
	IsEnabled(featureName, userID string) bool
}

// Deps holds everything a command handler needs. Publisher and Features are
// optional.
type Deps struct {
	Store     progress.Repository
	Catalog   *progress.Catalog
	Clock     timeutil.Clock
	Publisher shared.EventPublisher
	Features  FeatureGate
	Logger    *logger.Logger

	// NewID defaults to uuid.NewString.
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = progress.DefaultCatalog()
	}
	if d.Clock == nil {
		d.Clock = &timeutil.SystemClock{Location: time.UTC}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// Result is what every command returns: the saved record and the events
// the unit produced, in publication order.
type Result struct {
	Progress *progress.UserProgress
	Events   []shared.Event

	// Saved is false when the mutation changed nothing and no write happened.
	Saved bool
}

// mutation changes p in place. It must not touch the store.
type mutation func(p *progress.UserProgress, env progress.Env) error

// unitOfWork runs one load→mutate→save cycle per command.
type unitOfWork struct {
	deps Deps
	log  *logger.Logger
}

func newUnitOfWork(deps Deps, component string) unitOfWork {
	deps = deps.withDefaults()
	return unitOfWork{deps: deps, log: deps.Logger.With(logger.Component(component))}
}

func (u unitOfWork) enabled(feature, userID string) bool {
	return u.deps.Features == nil || u.deps.Features.IsEnabled(feature, userID)
}

// requireFeature fails with a forbidden error when feature is off.
func (u unitOfWork) requireFeature(feature, userID, op string) error {
	if u.enabled(feature, userID) {
		return nil
	}
	return shared.NewDomainError("progress", op, shared.ErrForbidden, feature+" is disabled")
}

func (u unitOfWork) env() progress.Env {
	now := u.deps.Clock.Now()
	return progress.Env{
		Catalog: u.deps.Catalog,
		Today:   shared.DayOf(now),
		Now:     now,
		NewID:   u.deps.NewID,
	}
}

// load returns the user's record, creating it on first touch.
func (u unitOfWork) load(ctx context.Context, op, userID string) (*progress.UserProgress, bool, error) {
	p, err := u.deps.Store.Get(ctx, userID)
	if err != nil {
		return nil, false, storeError(op, err)
	}
	if p != nil {
		return p, false, nil
	}
	p, err = u.deps.Store.Create(ctx, userID)
	if err != nil {
		return nil, false, storeError(op, err)
	}
	return p, true, nil
}

// run executes mutate against a clone of the stored record, then settles
// goals and achievements, saves the diff with a version check and publishes
// what changed.
func (u unitOfWork) run(ctx context.Context, op, userID string, mutate mutation) (*Result, error) {
	id, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	userID = id.String()
	start := time.Now()
	log := u.log.With(logger.Operation(op), logger.UserID(userID))

	before, created, err := u.load(ctx, op, userID)
	if err != nil {
		log.Error("load failed", logger.Err(err))
		return nil, err
	}

	env := u.env()
	after := before.Clone()
	if err := mutate(after, env); err != nil {
		return nil, err
	}
	u.settle(after, env)

	result := &Result{Progress: after}
	if created {
		result.Events = append(result.Events, shared.NewProgressCreatedEvent(userID, env.Now))
	}

	patch := progress.Diff(before, after)
	if !patch.IsEmpty() {
		saved, err := u.deps.Store.Save(ctx, userID, patch)
		if err != nil {
			err = storeError(op, err)
			if shared.IsConflict(err) {
				log.Warn("concurrent modification", logger.RecordVersion(patch.ExpectedVersion))
			} else {
				log.Error("save failed", logger.Err(err))
			}
			return nil, err
		}
		result.Progress = saved
		result.Saved = true
		result.Events = append(result.Events, deriveEvents(before, saved, u.deps.Catalog, env.Now)...)
	}

	u.publish(log, result.Events)
	log.Info("command completed",
		logger.Bool("saved", result.Saved),
		logger.RecordVersion(result.Progress.Version),
		logger.Count("events", len(result.Events)),
		logger.Latency(time.Since(start)),
	)
	return result, nil
}

// settle refreshes goals and, when enabled, evaluates achievements.
func (u unitOfWork) settle(p *progress.UserProgress, env progress.Env) {
	if u.enabled(config.FeatureAchievements, p.UserID) {
		progress.Settle(p, env)
		return
	}
	progress.RefreshGoals(p, env)
}

func (u unitOfWork) publish(log *logger.Logger, events []shared.Event) {
	if u.deps.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := u.deps.Publisher.Publish(e); err != nil {
			log.Warn("publish failed", logger.EventType(string(e.EventType())), logger.Err(err))
		}
	}
}

// deriveEvents compares the loaded and saved records. Ordering: streak,
// challenge, goals, achievements, level.
func deriveEvents(before, after *progress.UserProgress, catalog *progress.Catalog, at time.Time) []shared.Event {
	var events []shared.Event
	userID := after.UserID

	if after.LastActivityDate != before.LastActivityDate && after.TotalDaysActive > before.TotalDaysActive {
		if before.CurrentStreak > 0 && after.CurrentStreak == 1 {
			events = append(events, shared.NewStreakBrokenEvent(userID, before.CurrentStreak, at))
		}
		events = append(events, shared.NewStreakUpdatedEvent(userID, after.CurrentStreak, after.LongestStreak, after.LastActivityDate.String(), at))
	}

	if idx := before.WelcomeChallengesCompleted; after.WelcomeChallengesCompleted > idx && idx < len(catalog.Challenges) {
		def := catalog.Challenges[idx]
		events = append(events, shared.NewChallengeCompletedEvent(userID, def.ID, idx, def.Points, at))
	}

	wasDone := make(map[string]bool, len(before.Goals))
	for _, g := range before.Goals {
		wasDone[g.ID] = g.Completed
	}
	for _, g := range after.Goals {
		if g.Completed && !wasDone[g.ID] {
			events = append(events, shared.NewGoalCompletedEvent(userID, g.ID, g.Title, g.IsCustom, at))
		}
	}

	for _, def := range catalog.Achievements {
		if after.Achievements[def.ID].Earned && !before.Achievements[def.ID].Earned {
			events = append(events, shared.NewAchievementUnlockedEvent(userID, def.ID, def.Title, string(def.Rarity), def.Points, at))
		}
	}

	if after.Level > before.Level {
		events = append(events, shared.NewLevelUpEvent(userID, before.Level, after.Level, after.Experience, at))
	}
	return events
}

// storeError keeps domain errors from the store and wraps anything else.
func storeError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.PersistenceError(op, err)
}
