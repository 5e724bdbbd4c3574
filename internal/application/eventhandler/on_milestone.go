// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE HANDLER
// Writes an audit log line for every gamification milestone: unlocked
// achievements, level ups, completed goals and challenges, broken streaks,
// and streaks that reach a round number of days.
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneConfig configures OnMilestoneHandler.
type MilestoneConfig struct {
	// StreakMilestones are the streak lengths worth an audit entry.
	StreakMilestones []int
}

// DefaultMilestoneConfig returns default configuration.
func DefaultMilestoneConfig() MilestoneConfig {
	return MilestoneConfig{StreakMilestones: []int{7, 30, 100, 365}}
}

// OnMilestoneHandler audits milestone events and counts them by type.
type OnMilestoneHandler struct {
	logger *logger.Logger
	config MilestoneConfig

	mu     sync.Mutex
	counts map[shared.EventType]int64
}

// NewOnMilestoneHandler creates a new OnMilestoneHandler.
func NewOnMilestoneHandler(log *logger.Logger, config MilestoneConfig) *OnMilestoneHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.StreakMilestones == nil {
		config = DefaultMilestoneConfig()
	}
	return &OnMilestoneHandler{
		logger: log.With(logger.Component("milestones")),
		config: config,
		counts: make(map[shared.EventType]int64),
	}
}

// EventTypes lists the events the handler subscribes to.
func (h *OnMilestoneHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventAchievementUnlock,
		shared.EventLevelUp,
		shared.EventGoalCompleted,
		shared.EventChallengeCompleted,
		shared.EventStreakBroken,
		shared.EventStreakUpdated,
	}
}

// Register subscribes the handler to every event it handles.
func (h *OnMilestoneHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range h.EventTypes() {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle processes one event.
func (h *OnMilestoneHandler) Handle(event shared.Event) error {
	log := h.logger.With(
		logger.EventType(string(event.EventType())),
		logger.UserID(event.AggregateID()),
	)

	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		log.Info("achievement unlocked",
			logger.AchievementID(e.AchievementID),
			logger.String("rarity", e.Rarity),
			logger.Points(e.Points),
		)
	case shared.LevelUpEvent:
		log.Info("level up", logger.Int("old_level", e.OldLevel), logger.Int("new_level", e.NewLevel))
	case shared.GoalCompletedEvent:
		log.Info("goal completed", logger.GoalID(e.GoalID), logger.Bool("custom", e.Custom))
	case shared.ChallengeCompletedEvent:
		log.Info("challenge completed", logger.String("challenge_id", e.ChallengeID), logger.Int("index", e.Index))
	case shared.StreakBrokenEvent:
		log.Info("streak broken", logger.Int("previous", e.PreviousStreak))
	case shared.StreakUpdatedEvent:
		if !slices.Contains(h.config.StreakMilestones, e.CurrentStreak) {
			return nil
		}
		log.Info("streak milestone", logger.Int("days", e.CurrentStreak))
	default:
		return nil
	}

	h.mu.Lock()
	h.counts[event.EventType()]++
	h.mu.Unlock()
	return nil
}

// Counts returns how many milestones were audited per event type.
func (h *OnMilestoneHandler) Counts() map[shared.EventType]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.counts)
}
