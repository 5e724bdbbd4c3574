package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/majorpath/majorpath-hub/internal/application/command"
	"github.com/majorpath/majorpath-hub/internal/application/query"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics serves JSON snapshots of every registered metrics source.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"uptime_seconds": int64(s.Uptime().Seconds()),
		"version":        s.config.Version,
	}
	for name, snapshot := range s.deps.Metrics {
		out[name] = snapshot()
	}
	writeJSON(w, r, http.StatusOK, out)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// eventDTO is the wire form of a domain event in mutation responses.
type eventDTO struct {
	Type    shared.EventType       `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// mutationResponse is returned by every write endpoint.
type mutationResponse struct {
	Progress *progress.UserProgress `json:"progress"`
	Saved    bool                   `json:"saved"`
	Events   []eventDTO             `json:"events"`
}

func newMutationResponse(res *command.Result) mutationResponse {
	out := mutationResponse{Progress: res.Progress, Saved: res.Saved, Events: make([]eventDTO, 0, len(res.Events))}
	for _, e := range res.Events {
		out.Events = append(out.Events, eventDTO{Type: e.EventType(), Payload: e.Payload()})
	}
	return out
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = n
	}

	dto, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{UserID: userID(r), RecentLimit: limit})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// recordActivityRequest is the body of POST /activities.
type recordActivityRequest struct {
	Type         command.ActivityType `json:"type"`
	MajorID      string               `json:"majorId"`
	RoadmapID    string               `json:"roadmapId"`
	AssessmentID string               `json:"assessmentId"`
	Score        float64              `json:"score"`
	Percent      float64              `json:"percent"`
	CompletedAt  *time.Time           `json:"completedAt"`
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := command.RecordActivityCommand{
		UserID:       userID(r),
		Type:         req.Type,
		MajorID:      req.MajorID,
		RoadmapID:    req.RoadmapID,
		AssessmentID: req.AssessmentID,
		Score:        req.Score,
		Percent:      req.Percent,
	}
	if req.CompletedAt != nil {
		cmd.CompletedAt = *req.CompletedAt
	}

	res, err := s.deps.RecordActivity.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		mutationResponse
		Changed bool `json:"changed"`
	}{newMutationResponse(res.Result), res.Changed})
}

func (s *Server) handleEvaluateAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.EvaluateAchievements.Handle(r.Context(), command.EvaluateAchievementsCommand{UserID: userID(r)})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		mutationResponse
		Achievements []progress.AchievementView `json:"achievements"`
		Unlocked     []string                   `json:"unlocked"`
	}{newMutationResponse(res.Result), res.Achievements, nonNil(res.Unlocked)})
}

func (s *Server) handleGetAchievement(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetProgress.Achievement(r.Context(), userID(r), mux.Vars(r)["achievementID"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetProgress.Challenge(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"challenge": view,
		"exhausted": view == nil,
	})
}

func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.CompleteChallenge.Handle(r.Context(), command.CompleteChallengeCommand{UserID: userID(r)})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		mutationResponse
		Completed *progress.ChallengeDefinition `json:"completed"`
		Next      *progress.ChallengeView       `json:"next"`
	}{newMutationResponse(res.Result), res.Completed, res.Next})
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// goalRequest is the body of goal create and edit.
type goalRequest struct {
	Title  string `json:"title"`
	Target int    `json:"target"`
	Unit   string `json:"unit"`
}

func (g goalRequest) input() progress.GoalInput {
	return progress.GoalInput{Title: g.Title, Target: g.Target, Unit: g.Unit}
}

func (s *Server) handleSuggestGoal(w http.ResponseWriter, r *http.Request) {
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionSuggest}, http.StatusCreated)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionCreate, Input: req.input()}, http.StatusCreated)
}

func (s *Server) handleEditGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionEdit, Input: req.input()}, http.StatusOK)
}

func (s *Server) handleCompleteGoal(w http.ResponseWriter, r *http.Request) {
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionComplete}, http.StatusOK)
}

func (s *Server) handleUpdateGoalProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current *int `json:"current"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Current == nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", "current is required")
		return
	}
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionUpdateProgress, Current: *req.Current}, http.StatusOK)
}

func (s *Server) handleRemoveGoal(w http.ResponseWriter, r *http.Request) {
	s.runGoal(w, r, command.ManageGoalCommand{Action: command.GoalActionRemove}, http.StatusOK)
}

// runGoal fills the path parameters and executes a goal command. Suggest
// answers 200 with a null goal once the catalog is exhausted.
func (s *Server) runGoal(w http.ResponseWriter, r *http.Request, cmd command.ManageGoalCommand, status int) {
	cmd.UserID = userID(r)
	cmd.GoalID = mux.Vars(r)["goalID"]

	res, err := s.deps.ManageGoal.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if cmd.Action == command.GoalActionSuggest && res.Goal == nil {
		status = http.StatusOK
	}
	writeJSON(w, r, status, struct {
		mutationResponse
		Goal *progress.Goal `json:"goal"`
	}{newMutationResponse(res.Result), res.Goal})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func userID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// writeDomainError maps error kinds to status codes. Conflicts carry the
// persistence kind too, so they are checked first.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()

	log := logger.FromContext(r.Context()).With(logger.UserID(userID(r)), logger.Err(err))
	switch {
	case status >= 500:
		log.Error("request failed")
		message = "The progress store is unavailable, retry later"
		if status == http.StatusInternalServerError {
			message = "An unexpected error occurred"
		}
	case status == http.StatusConflict:
		log.Warn("request conflicted")
		message = "The record changed concurrently, retry the request"
	default:
		log.Debug("request rejected")
	}
	writeJSONError(w, r, status, code, message)
}

func statusFor(err error) (int, string) {
	switch {
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "feature_disabled"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsPersistence(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
