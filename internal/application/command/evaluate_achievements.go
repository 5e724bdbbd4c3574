package command

import (
	"context"
	"strings"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// EvaluateAchievementsCommand re-runs achievement evaluation for a user.
// Running it any number of times unlocks each achievement at most once.
type EvaluateAchievementsCommand struct {
	UserID string
}

// EvaluateAchievementsResult lists every achievement and the new unlocks.
type EvaluateAchievementsResult struct {
	*Result
	Achievements []progress.AchievementView
	Unlocked     []string
}

// EvaluateAchievementsHandler handles EvaluateAchievementsCommand.
type EvaluateAchievementsHandler struct {
	uow unitOfWork
}

// NewEvaluateAchievementsHandler creates a new EvaluateAchievementsHandler.
func NewEvaluateAchievementsHandler(deps Deps) *EvaluateAchievementsHandler {
	return &EvaluateAchievementsHandler{uow: newUnitOfWork(deps, "evaluate_achievements")}
}

// Handle executes the command.
func (h *EvaluateAchievementsHandler) Handle(ctx context.Context, cmd EvaluateAchievementsCommand) (*EvaluateAchievementsResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, shared.ErrEmptyUserID
	}
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if err := h.uow.requireFeature(config.FeatureAchievements, cmd.UserID, "EvaluateAchievements"); err != nil {
		return nil, err
	}

	res, err := h.uow.run(ctx, "EvaluateAchievements", cmd.UserID, func(*progress.UserProgress, progress.Env) error {
		// settling evaluates
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &EvaluateAchievementsResult{
		Result:       res,
		Achievements: progress.Achievements(res.Progress, h.uow.deps.Catalog),
	}
	for _, e := range res.Events {
		if u, ok := e.(shared.AchievementUnlockedEvent); ok {
			out.Unlocked = append(out.Unlocked, u.AchievementID)
		}
	}
	return out, nil
}
