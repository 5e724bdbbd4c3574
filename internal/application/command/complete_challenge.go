package command

import (
	"context"
	"strings"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE CHALLENGE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CompleteChallengeCommand completes the user's current welcome challenge.
type CompleteChallengeCommand struct {
	UserID string
}

// CompleteChallengeResult reports whether the sequence advanced.
type CompleteChallengeResult struct {
	*Result

	// Completed is the challenge that was completed, nil when nothing
	// advanced (already done today, or sequence exhausted).
	Completed *progress.ChallengeDefinition

	// Next is the challenge now current, nil once the sequence is exhausted.
	Next *progress.ChallengeView
}

// CompleteChallengeHandler handles CompleteChallengeCommand.
type CompleteChallengeHandler struct {
	uow unitOfWork
}

// NewCompleteChallengeHandler creates a new CompleteChallengeHandler.
func NewCompleteChallengeHandler(deps Deps) *CompleteChallengeHandler {
	return &CompleteChallengeHandler{uow: newUnitOfWork(deps, "complete_challenge")}
}

// Handle executes the command. Calling it twice on the same day is safe.
func (h *CompleteChallengeHandler) Handle(ctx context.Context, cmd CompleteChallengeCommand) (*CompleteChallengeResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, shared.ErrEmptyUserID
	}
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if err := h.uow.requireFeature(config.FeatureChallenges, cmd.UserID, "CompleteChallenge"); err != nil {
		return nil, err
	}

	out := &CompleteChallengeResult{}
	var today shared.Day
	res, err := h.uow.run(ctx, "CompleteChallenge", cmd.UserID, func(p *progress.UserProgress, env progress.Env) error {
		today = env.Today
		if def, ok := progress.CompleteChallenge(p, env); ok {
			out.Completed = def
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = res
	out.Next = progress.CurrentChallenge(res.Progress, h.uow.deps.Catalog, today)
	return out, nil
}
