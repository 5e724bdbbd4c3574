package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Records a tracked action, then advances the streak and settles goals and
// achievements in the same unit.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityType defines the type of activity being recorded.
type ActivityType string

const (
	// ActivityTypeVisit counts the day toward the streak and nothing else.
	ActivityTypeVisit ActivityType = "visit"

	// ActivityTypeExploreMajor marks a major as explored.
	ActivityTypeExploreMajor ActivityType = "explore_major"

	// ActivityTypeViewRoadmap marks a roadmap as viewed.
	ActivityTypeViewRoadmap ActivityType = "view_roadmap"

	// ActivityTypeTakeAssessment records a completed assessment.
	ActivityTypeTakeAssessment ActivityType = "take_assessment"

	// ActivityTypeUpdateMajorProgress sets the completion percent of a major.
	ActivityTypeUpdateMajorProgress ActivityType = "update_major_progress"
)

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	UserID string
	Type   ActivityType

	// MajorID is required for explore_major and update_major_progress, and
	// optional for take_assessment.
	MajorID string

	// RoadmapID is required for view_roadmap.
	RoadmapID string

	// AssessmentID is required for take_assessment.
	AssessmentID string

	// Score is the assessment result.
	Score float64

	// Percent is the new completion for update_major_progress. Clamped to 0-100.
	Percent float64

	// CompletedAt defaults to the clock's now.
	CompletedAt time.Time
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	const op = "RecordActivity"
	if strings.TrimSpace(c.UserID) == "" {
		return shared.ErrEmptyUserID
	}

	switch c.Type {
	case ActivityTypeVisit:
	case ActivityTypeExploreMajor, ActivityTypeUpdateMajorProgress:
		if strings.TrimSpace(c.MajorID) == "" {
			return shared.ValidationError("activity", op, fmt.Sprintf("major_id is required for %s", c.Type))
		}
	case ActivityTypeViewRoadmap:
		if strings.TrimSpace(c.RoadmapID) == "" {
			return shared.ValidationError("activity", op, "roadmap_id is required for view_roadmap")
		}
	case ActivityTypeTakeAssessment:
		if strings.TrimSpace(c.AssessmentID) == "" {
			return shared.ValidationError("activity", op, "assessment_id is required for take_assessment")
		}
	default:
		return shared.ValidationError("activity", op, fmt.Sprintf("unknown activity type: %q", c.Type))
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	*Result

	// Changed is false when the tracked action was a repeat (same major,
	// roadmap or assessment id).
	Changed bool

	// Streak is the streak change made by this activity.
	Streak progress.StreakChange
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	uow unitOfWork
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(deps Deps) *RecordActivityHandler {
	return &RecordActivityHandler{uow: newUnitOfWork(deps, "record_activity")}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	out := &RecordActivityResult{}
	res, err := h.uow.run(ctx, "RecordActivity", cmd.UserID, func(p *progress.UserProgress, env progress.Env) error {
		out.Changed = apply(p, env, cmd)
		if h.uow.enabled(config.FeatureStreaks, p.UserID) {
			out.Streak = progress.UpdateStreak(p, env.Today)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

func apply(p *progress.UserProgress, env progress.Env, cmd RecordActivityCommand) bool {
	switch cmd.Type {
	case ActivityTypeExploreMajor:
		return progress.ExploreMajor(p, env, strings.TrimSpace(cmd.MajorID))
	case ActivityTypeViewRoadmap:
		return progress.ViewRoadmap(p, env, strings.TrimSpace(cmd.RoadmapID))
	case ActivityTypeTakeAssessment:
		return progress.RecordAssessment(p, env, progress.AssessmentRecord{
			ID:          strings.TrimSpace(cmd.AssessmentID),
			MajorID:     strings.TrimSpace(cmd.MajorID),
			Score:       cmd.Score,
			CompletedAt: cmd.CompletedAt,
		})
	case ActivityTypeUpdateMajorProgress:
		majorID := strings.TrimSpace(cmd.MajorID)
		prev, had := p.MajorProgress[majorID]
		progress.SetMajorProgress(p, majorID, cmd.Percent)
		return !had || prev != p.MajorProgress[majorID]
	default:
		return false
	}
}
