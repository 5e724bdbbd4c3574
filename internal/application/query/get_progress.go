// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/logger"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Builds the dashboard projection. Nothing computed here is stored; the only
// write is the lazy creation of a missing record.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecentActivities is how many log entries the dashboard shows.
const DefaultRecentActivities = 10

// GetProgressQuery contains the parameters of a dashboard read.
type GetProgressQuery struct {
	UserID string

	// RecentLimit caps RecentActivities. 0 means the handler default.
	RecentLimit int
}

// Validate checks the query.
func (q GetProgressQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.ErrEmptyUserID
	}
	if q.RecentLimit < 0 {
		return shared.ValidationError("progress", "GetProgress", "limit cannot be negative")
	}
	return nil
}

// DashboardDTO is the full read projection for one user.
type DashboardDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Summary
	// ─────────────────────────────────────────────────────────────────────────

	UserID    string             `json:"userId"`
	Overview  progress.Overview  `json:"overview"`
	Breakdown progress.Breakdown `json:"breakdown"`
	Level     progress.LevelView `json:"level"`

	// ─────────────────────────────────────────────────────────────────────────
	// Gamification (nil when the feature is off for the user)
	// ─────────────────────────────────────────────────────────────────────────

	Streak           *progress.StreakView       `json:"streak,omitempty"`
	Achievements     []progress.AchievementView `json:"achievements,omitempty"`
	Goals            []progress.Goal            `json:"goals,omitempty"`
	CurrentChallenge *progress.ChallengeView    `json:"currentChallenge,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Activity
	// ─────────────────────────────────────────────────────────────────────────

	RecentActivities []progress.Activity `json:"recentActivities"`

	// ─────────────────────────────────────────────────────────────────────────
	// Metadata
	// ─────────────────────────────────────────────────────────────────────────

	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// FeatureGate reports whether a gamification feature is on for a user.
type FeatureGate interface {
	IsEnabled(featureName, userID string) bool
}

// GetProgressHandler serves dashboard and single-section reads.
type GetProgressHandler struct {
	store    progress.Store
	catalog  *progress.Catalog
	clock    timeutil.Clock
	features FeatureGate
	recent   int
	log      *logger.Logger
}

// GetProgressHandlerConfig configures GetProgressHandler. Features and
// Logger are optional.
type GetProgressHandlerConfig struct {
	Catalog          *progress.Catalog
	Clock            timeutil.Clock
	Features         FeatureGate
	RecentActivities int
	Logger           *logger.Logger
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(store progress.Store, cfg GetProgressHandlerConfig) *GetProgressHandler {
	if cfg.Catalog == nil {
		cfg.Catalog = progress.DefaultCatalog()
	}
	if cfg.Clock == nil {
		cfg.Clock = &timeutil.SystemClock{Location: time.UTC}
	}
	if cfg.RecentActivities <= 0 {
		cfg.RecentActivities = DefaultRecentActivities
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &GetProgressHandler{
		store:    store,
		catalog:  cfg.Catalog,
		clock:    cfg.Clock,
		features: cfg.Features,
		recent:   cfg.RecentActivities,
		log:      cfg.Logger.With(logger.Component("get_progress")),
	}
}

// Handle builds the dashboard.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*DashboardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	p, err := h.load(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	limit := q.RecentLimit
	if limit == 0 {
		limit = h.recent
	}
	recent, err := h.store.RecentActivities(ctx, p.UserID, limit)
	if err != nil {
		h.log.Error("recent activities failed", logger.UserID(p.UserID), logger.Err(err))
		return nil, storeError("RecentActivities", err)
	}

	now := h.clock.Now()
	today := shared.DayOf(now)
	env := progress.Env{Catalog: h.catalog, Today: today, Now: now, NewID: func() string { return "" }}

	// refresh suggested goals on a copy so stale values show current metrics
	view := p.Clone()
	progress.RefreshGoals(view, env)

	dto := &DashboardDTO{
		UserID:           p.UserID,
		Overview:         progress.Summarize(p),
		Breakdown:        progress.ScoreBreakdown(p),
		Level:            progress.Level(p, h.catalog.LevelThresholds),
		RecentActivities: recent,
		Version:          p.Version,
		UpdatedAt:        p.UpdatedAt,
		GeneratedAt:      now,
	}
	if h.enabled(config.FeatureStreaks, p.UserID) {
		s := progress.Streak(p, today)
		dto.Streak = &s
	}
	if h.enabled(config.FeatureAchievements, p.UserID) {
		dto.Achievements = progress.Achievements(p, h.catalog)
	}
	if h.enabled(config.FeatureGoals, p.UserID) {
		dto.Goals = view.Goals
	}
	if h.enabled(config.FeatureChallenges, p.UserID) {
		dto.CurrentChallenge = progress.CurrentChallenge(p, h.catalog, today)
	}
	return dto, nil
}

// Achievement returns one achievement view.
func (h *GetProgressHandler) Achievement(ctx context.Context, userID, achievementID string) (*progress.AchievementView, error) {
	p, err := h.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	v, err := progress.Achievement(p, h.catalog, achievementID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Challenge returns the user's current welcome challenge, nil once the
// sequence is exhausted.
func (h *GetProgressHandler) Challenge(ctx context.Context, userID string) (*progress.ChallengeView, error) {
	p, err := h.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progress.CurrentChallenge(p, h.catalog, shared.DayOf(h.clock.Now())), nil
}

// load reads the record, creating it lazily on first read.
func (h *GetProgressHandler) load(ctx context.Context, userID string) (*progress.UserProgress, error) {
	id, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	userID = id.String()
	p, err := h.store.Get(ctx, userID)
	if err != nil {
		h.log.Error("load failed", logger.UserID(userID), logger.Err(err))
		return nil, storeError("Get", err)
	}
	if p != nil {
		return p, nil
	}
	p, err = h.store.Create(ctx, userID)
	if err != nil {
		h.log.Error("lazy create failed", logger.UserID(userID), logger.Err(err))
		return nil, storeError("Create", err)
	}
	h.log.Info("progress record created on read", logger.UserID(userID))
	return p, nil
}

func (h *GetProgressHandler) enabled(feature, userID string) bool {
	return h.features == nil || h.features.IsEnabled(feature, userID)
}

func storeError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.PersistenceError(op, err)
}
