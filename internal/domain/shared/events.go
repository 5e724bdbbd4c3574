package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one marks a derived-state transition of a
// user's progress record that other parts of the system may react to.
const (
	EventProgressCreated    EventType = "progress.created"
	EventStreakUpdated      EventType = "progress.streak_updated"
	EventStreakBroken       EventType = "progress.streak_broken"
	EventLevelUp            EventType = "progress.level_up"
	EventAchievementUnlock  EventType = "achievement.unlocked"
	EventGoalCompleted      EventType = "goal.completed"
	EventChallengeCompleted EventType = "challenge.completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given instant.
func NewBaseEvent(eventType EventType, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: userID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Record Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressCreatedEvent is emitted when a default record is lazily created.
type ProgressCreatedEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e ProgressCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"user_id": e.AggregateId}
}

// NewProgressCreatedEvent creates a new ProgressCreatedEvent.
func NewProgressCreatedEvent(userID string, at time.Time) ProgressCreatedEvent {
	return ProgressCreatedEvent{BaseEvent: NewBaseEvent(EventProgressCreated, userID, at)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted the first time a user is active on a new day.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	Day           string `json:"day"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"day":            e.Day,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int, day string, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID, at),
		CurrentStreak: current,
		LongestStreak: longest,
		Day:           day,
	}
}

// StreakBrokenEvent is emitted when a gap resets a running streak.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previous int, at time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID, at),
		PreviousStreak: previous,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted when accumulated experience crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	OldLevel   int `json:"old_level"`
	NewLevel   int `json:"new_level"`
	Experience int `json:"experience"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"experience": e.Experience,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, experience int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:  NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:   oldLevel,
		NewLevel:   newLevel,
		Experience: experience,
	}
}

// AchievementUnlockedEvent is emitted once per achievement per user.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	Rarity        string `json:"rarity"`
	Points        int    `json:"points"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"title":          e.Title,
		"rarity":         e.Rarity,
		"points":         e.Points,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, title, rarity string, points int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlock, userID, at),
		AchievementID: achievementID,
		Title:         title,
		Rarity:        rarity,
		Points:        points,
	}
}

// GoalCompletedEvent is emitted when a goal transitions to completed.
type GoalCompletedEvent struct {
	BaseEvent
	GoalID string `json:"goal_id"`
	Title  string `json:"title"`
	Custom bool   `json:"custom"`
}

// Payload implements Event interface.
func (e GoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"goal_id": e.GoalID,
		"title":   e.Title,
		"custom":  e.Custom,
	}
}

// NewGoalCompletedEvent creates a new GoalCompletedEvent.
func NewGoalCompletedEvent(userID, goalID, title string, custom bool, at time.Time) GoalCompletedEvent {
	return GoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventGoalCompleted, userID, at),
		GoalID:    goalID,
		Title:     title,
		Custom:    custom,
	}
}

// ChallengeCompletedEvent is emitted when a welcome challenge is completed.
type ChallengeCompletedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Index       int    `json:"index"`
	Points      int    `json:"points"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"index":        e.Index,
		"points":       e.Points,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID string, index, points int, at time.Time) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeCompleted, userID, at),
		ChallengeID: challengeID,
		Index:       index,
		Points:      points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
