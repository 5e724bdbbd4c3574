package command

import (
	"context"
	"strings"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// GoalAction selects what ManageGoalCommand does.
type GoalAction string

const (
	GoalActionSuggest        GoalAction = "suggest"
	GoalActionCreate         GoalAction = "create"
	GoalActionComplete       GoalAction = "complete"
	GoalActionRemove         GoalAction = "remove"
	GoalActionEdit           GoalAction = "edit"
	GoalActionUpdateProgress GoalAction = "update_progress"
)

// ManageGoalCommand is one goal operation.
type ManageGoalCommand struct {
	UserID string
	Action GoalAction

	// GoalID is required for complete, remove, edit and update_progress.
	GoalID string

	// Input is required for create and edit.
	Input progress.GoalInput

	// Current is the new value for update_progress.
	Current int
}

// Validate validates the command. Goal input itself is validated by the
// domain so create and edit report the same messages everywhere.
func (c ManageGoalCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.ErrEmptyUserID
	}
	switch c.Action {
	case GoalActionSuggest, GoalActionCreate:
	case GoalActionComplete, GoalActionRemove, GoalActionEdit, GoalActionUpdateProgress:
		if strings.TrimSpace(c.GoalID) == "" {
			return shared.ValidationError("goal", string(c.Action), "goal_id is required")
		}
	default:
		return shared.ValidationError("goal", "Manage", "unknown goal action: "+string(c.Action))
	}
	return nil
}

// ManageGoalResult contains the affected goal and the saved record.
type ManageGoalResult struct {
	*Result

	// Goal is the goal after the operation. Nil for remove, and for suggest
	// when every catalog goal is already present.
	Goal *progress.Goal
}

// ManageGoalHandler handles ManageGoalCommand.
type ManageGoalHandler struct {
	uow unitOfWork
}

// NewManageGoalHandler creates a new ManageGoalHandler.
func NewManageGoalHandler(deps Deps) *ManageGoalHandler {
	return &ManageGoalHandler{uow: newUnitOfWork(deps, "manage_goal")}
}

// Handle executes the goal command.
func (h *ManageGoalHandler) Handle(ctx context.Context, cmd ManageGoalCommand) (*ManageGoalResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	op := "Goal." + string(cmd.Action)
	if err := h.uow.requireFeature(config.FeatureGoals, cmd.UserID, op); err != nil {
		return nil, err
	}

	out := &ManageGoalResult{}
	goalID := strings.TrimSpace(cmd.GoalID)
	res, err := h.uow.run(ctx, op, cmd.UserID, func(p *progress.UserProgress, env progress.Env) error {
		var (
			g   *progress.Goal
			err error
		)
		switch cmd.Action {
		case GoalActionSuggest:
			g = progress.SuggestGoal(p, env)
		case GoalActionCreate:
			g, err = progress.CreateGoal(p, env, cmd.Input)
		case GoalActionComplete:
			g, err = progress.CompleteGoal(p, env, goalID)
		case GoalActionRemove:
			err = progress.RemoveGoal(p, goalID)
		case GoalActionEdit:
			g, err = progress.EditGoal(p, env, goalID, cmd.Input)
		case GoalActionUpdateProgress:
			g, err = progress.UpdateGoalProgress(p, env, goalID, cmd.Current)
		}
		out.Goal = g
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Result = res

	// settling may have completed the goal after the mutation returned it
	if out.Goal != nil {
		for _, g := range res.Progress.Goals {
			if g.ID == out.Goal.ID {
				out.Goal = &g
				break
			}
		}
	}
	return out, nil
}
