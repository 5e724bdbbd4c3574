package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/application/command"
	"github.com/majorpath/majorpath-hub/internal/application/query"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/progress/progresstest"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/internal/interface/http/handlers"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

type testEnv struct {
	server   *Server
	store    *progresstest.MemoryStore
	features *config.FeatureFlags
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	store := progresstest.NewMemoryStore(0, clock.Now)
	features := config.NewFeatureFlags()
	deps := command.Deps{Store: store, Clock: clock, Features: features}

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", func(context.Context) error { return nil })

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		RecordActivity:       command.NewRecordActivityHandler(deps),
		ManageGoal:           command.NewManageGoalHandler(deps),
		CompleteChallenge:    command.NewCompleteChallengeHandler(deps),
		EvaluateAchievements: command.NewEvaluateAchievementsHandler(deps),
		GetProgress:          query.NewGetProgressHandler(store, query.GetProgressHandlerConfig{Clock: clock, Features: features}),
		HealthChecker:        health,
		Metrics: map[string]func() any{
			"records": func() any { return store.Saves },
		},
	})
	return &testEnv{server: srv, store: store, features: features}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestGetProgress_LazyCreates(t *testing.T) {
	e := newTestEnv(t, nil)

	rec, env := e.do(t, http.MethodGet, "/api/v1/users/u1/progress", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, rec.Header().Get("X-Request-ID"))

	var dto query.DashboardDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "u1", dto.UserID)
	assert.Equal(t, 1, dto.Level.Level)
	require.NotNil(t, dto.CurrentChallenge)
	assert.Equal(t, "welcome-first-major", dto.CurrentChallenge.ID)
}

func TestRecordActivity_Endpoint(t *testing.T) {
	e := newTestEnv(t, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/users/u1/activities",
		map[string]any{"type": "explore_major", "majorId": "cs"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Progress progress.UserProgress `json:"progress"`
		Changed  bool                  `json:"changed"`
		Events   []eventDTO            `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.True(t, body.Changed)
	assert.Equal(t, []string{"cs"}, body.Progress.MajorsExplored)
	assert.True(t, body.Progress.Achievements["first-major"].Earned)

	types := make([]shared.EventType, 0, len(body.Events))
	for _, ev := range body.Events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, shared.EventAchievementUnlock)
}

func TestRecordActivity_BadInput(t *testing.T) {
	e := newTestEnv(t, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/users/u1/activities", map[string]any{"type": "dance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = e.do(t, http.MethodPost, "/api/v1/users/u1/activities", map[string]any{"type": "visit", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", env.Error.Code)
}

func TestGoalEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/users/u1/goals",
		map[string]any{"title": "Read", "target": 2, "unit": "books"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Goal progress.Goal `json:"goal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	goalPath := "/api/v1/users/u1/goals/" + created.Goal.ID

	rec, _ = e.do(t, http.MethodPost, goalPath+"/progress", map[string]any{"current": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = e.do(t, http.MethodPut, goalPath, map[string]any{"title": "Read more", "target": 4, "unit": "books"})
	require.Equal(t, http.StatusOK, rec.Code)
	var edited struct {
		Goal progress.Goal `json:"goal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &edited))
	assert.True(t, edited.Goal.Completed)
	assert.Equal(t, 4, edited.Goal.Current)

	rec, _ = e.do(t, http.MethodDelete, goalPath, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = e.do(t, http.MethodPost, goalPath+"/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = e.do(t, http.MethodPost, "/api/v1/users/u1/goals", map[string]any{"title": "x", "target": 0, "unit": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestChallengeEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	rec, _ := e.do(t, http.MethodPost, "/api/v1/users/u1/challenge/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := e.do(t, http.MethodGet, "/api/v1/users/u1/challenge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Challenge *progress.ChallengeView `json:"challenge"`
		Exhausted bool                    `json:"exhausted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.NotNil(t, body.Challenge)
	assert.Equal(t, 1, body.Challenge.Index)
	assert.True(t, body.Challenge.CompletedToday)

	e.features.SetUserOverride("u1", config.FeatureChallenges, false)
	rec, env = e.do(t, http.MethodPost, "/api/v1/users/u1/challenge/complete", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "feature_disabled", env.Error.Code)
}

func TestUserTokens(t *testing.T) {
	e := newTestEnv(t, func(c *Config) { c.JWTSecret = "s3cret" })
	auth := handlers.NewUserAuth("s3cret", "id")
	token, err := auth.IssueToken("u1", time.Hour)
	require.NoError(t, err)

	rec, _ := e.do(t, http.MethodGet, "/api/v1/users/u1/progress", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/users/u2/progress", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/users/u1/progress", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRequiresAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ops"), bcrypt.MinCost)
	require.NoError(t, err)
	e := newTestEnv(t, func(c *Config) { c.AdminKeyHashes = []string{string(hash)} })

	rec, _ := e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := e.do(t, http.MethodGet, "/metrics", nil, handlers.AdminKeyHeader, "ops")
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Contains(t, m, "records")
	assert.Contains(t, m, "uptime_seconds")
}

func TestCORSAndRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *Config) {
		c.AllowedOrigins = []string{"https://app.example"}
		c.RateLimitPerMinute = 2
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/u1/progress", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	e.do(t, http.MethodGet, "/live", nil)
	e.do(t, http.MethodGet, "/live", nil)
	rec, env := e.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
}

func TestReadyReflectsStore(t *testing.T) {
	e := newTestEnv(t, nil)
	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", func(context.Context) error { return errors.New("connection refused") })
	e.server.deps.HealthChecker = health

	rec, env := e.do(t, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", env.Error.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.ConflictError("Save", "u1"), http.StatusConflict},
		{shared.PersistenceError("Get", errors.New("eof")), http.StatusServiceUnavailable},
		{shared.ValidationError("goal", "Create", "bad"), http.StatusBadRequest},
		{shared.ErrGoalNotFound, http.StatusNotFound},
		{shared.ErrEmptyUserID, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestStoreFailureMapsTo503(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.FailNext = errors.New("connection reset")

	rec, env := e.do(t, http.MethodGet, "/api/v1/users/u1/progress", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection reset")
}
