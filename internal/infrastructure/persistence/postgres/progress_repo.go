package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Store for PostgreSQL.
type ProgressRepository struct {
	conn   *Connection
	window int
	now    func() time.Time
}

// NewProgressRepository creates a store that keeps window activities per user.
func NewProgressRepository(conn *Connection, window int, now func() time.Time) *ProgressRepository {
	if window <= 0 {
		window = progress.DefaultActivityWindow
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ProgressRepository{conn: conn, window: window, now: now}
}

var _ progress.Store = (*ProgressRepository)(nil)

const selectRecord = `
	SELECT user_id, majors_explored, roadmaps_viewed, assessments_taken,
		   major_progress, achievements, goals,
		   current_streak, longest_streak, last_activity_date, total_days_active,
		   welcome_challenges_completed, last_welcome_challenge_date,
		   total_points, level, experience, version, created_at, updated_at
	FROM user_progress
	WHERE user_id = $1
`

// ─────────────────────────────────────────────────────────────────────────────
// Repository
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the record with its activity window, or nil when absent.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, err := scanRecord(r.conn.QueryRow(ctx, selectRecord, userID))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.PersistenceError("Get", err)
	}

	p.Activities, err = loadWindow(ctx, r.conn, userID, r.window)
	if err != nil {
		return nil, shared.PersistenceError("Get", err)
	}
	return p, nil
}

// Create inserts a zero-valued record. An existing record is returned as is.
func (r *ProgressRepository) Create(ctx context.Context, userID string) (*progress.UserProgress, error) {
	now := r.now()
	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_progress (user_id, version, created_at, updated_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return nil, shared.PersistenceError("Create", err)
	}

	p, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.PersistenceError("Create", fmt.Errorf("record %q vanished after insert", userID))
	}
	return p, nil
}

// Save locks the row, applies the patch and writes it back in one
// transaction. New activities go to the activity table, which is then
// trimmed to the window.
func (r *ProgressRepository) Save(ctx context.Context, userID string, patch progress.Patch) (*progress.UserProgress, error) {
	var out *progress.UserProgress

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := scanRecord(tx.QueryRow(ctx, selectRecord+" FOR UPDATE", userID))
		if IsNoRows(err) {
			return shared.NotFoundError("progress", "Save", fmt.Sprintf("no record for user %q", userID))
		}
		if err != nil {
			return err
		}
		if patch.ExpectedVersion > 0 && p.Version != patch.ExpectedVersion {
			return shared.ConflictError("Save", userID)
		}

		activities := patch.NewActivities
		patch.NewActivities = nil
		progress.ApplyPatch(p, patch, r.window, r.now())

		if err := updateRecord(ctx, tx, p); err != nil {
			return err
		}
		if err := insertActivities(ctx, tx, userID, activities, r.window); err != nil {
			return err
		}

		p.Activities, err = loadWindow(ctx, tx, userID, r.window)
		out = p
		return err
	})
	if err != nil {
		return nil, asStoreError("Save", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ActivityFeed
// ─────────────────────────────────────────────────────────────────────────────

// AppendActivity adds one entry and bumps the record version.
func (r *ProgressRepository) AppendActivity(ctx context.Context, userID string, activity progress.Activity) error {
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE user_progress SET version = version + 1, updated_at = $2
			WHERE user_id = $1
		`, userID, r.now())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NotFoundError("progress", "AppendActivity", fmt.Sprintf("no record for user %q", userID))
		}
		return insertActivities(ctx, tx, userID, []progress.Activity{activity}, r.window)
	})
	return asStoreError("AppendActivity", err)
}

// RecentActivities returns up to k entries, newest first.
func (r *ProgressRepository) RecentActivities(ctx context.Context, userID string, k int) ([]progress.Activity, error) {
	if k <= 0 || k > r.window {
		k = r.window
	}
	acts, err := loadWindow(ctx, r.conn, userID, k)
	if err != nil {
		return nil, shared.PersistenceError("RecentActivities", err)
	}
	return progress.NewestFirst(acts, k), nil
}

// Ping reports whether the database is reachable.
func (r *ProgressRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (*progress.UserProgress, error) {
	var (
		p                                  progress.UserProgress
		majors, roadmaps, assessments      []byte
		majorProgress, achievements, goals []byte
		lastActivity, lastChallenge        string
	)

	err := row.Scan(
		&p.UserID, &majors, &roadmaps, &assessments,
		&majorProgress, &achievements, &goals,
		&p.CurrentStreak, &p.LongestStreak, &lastActivity, &p.TotalDaysActive,
		&p.WelcomeChallengesCompleted, &lastChallenge,
		&p.TotalPoints, &p.Level, &p.Experience, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.LastActivityDate = shared.Day(lastActivity)
	p.LastWelcomeChallengeDate = shared.Day(lastChallenge)

	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{majors, &p.MajorsExplored},
		{roadmaps, &p.RoadmapsViewed},
		{assessments, &p.AssessmentsTaken},
		{majorProgress, &p.MajorProgress},
		{achievements, &p.Achievements},
		{goals, &p.Goals},
	} {
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", p.UserID, err)
		}
	}

	p.Normalize()
	return &p, nil
}

func updateRecord(ctx context.Context, q Querier, p *progress.UserProgress) error {
	cols := make([][]byte, 0, 6)
	for _, v := range []any{p.MajorsExplored, p.RoadmapsViewed, p.AssessmentsTaken, p.MajorProgress, p.Achievements, p.Goals} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode record %q: %w", p.UserID, err)
		}
		cols = append(cols, b)
	}

	_, err := q.Exec(ctx, `
		UPDATE user_progress SET
			majors_explored = $2,
			roadmaps_viewed = $3,
			assessments_taken = $4,
			major_progress = $5,
			achievements = $6,
			goals = $7,
			current_streak = $8,
			longest_streak = $9,
			last_activity_date = $10,
			total_days_active = $11,
			welcome_challenges_completed = $12,
			last_welcome_challenge_date = $13,
			total_points = $14,
			level = $15,
			experience = $16,
			version = $17,
			updated_at = $18
		WHERE user_id = $1
	`,
		p.UserID, cols[0], cols[1], cols[2], cols[3], cols[4], cols[5],
		p.CurrentStreak, p.LongestStreak, string(p.LastActivityDate), p.TotalDaysActive,
		p.WelcomeChallengesCompleted, string(p.LastWelcomeChallengeDate),
		p.TotalPoints, p.Level, p.Experience, p.Version, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

func insertActivities(ctx context.Context, q Querier, userID string, activities []progress.Activity, window int) error {
	if len(activities) == 0 {
		return nil
	}

	for _, a := range activities {
		_, err := q.Exec(ctx, `
			INSERT INTO progress_activities (user_id, id, action, category, points, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, userID, a.ID, a.Action, string(a.Category), a.Points, a.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
	}

	_, err := q.Exec(ctx, `
		DELETE FROM progress_activities
		WHERE user_id = $1 AND seq NOT IN (
			SELECT seq FROM progress_activities
			WHERE user_id = $1
			ORDER BY seq DESC
			LIMIT $2
		)
	`, userID, window)
	if err != nil {
		return fmt.Errorf("failed to trim activities: %w", err)
	}
	return nil
}

// loadWindow returns the newest limit activities in ascending order.
func loadWindow(ctx context.Context, q Querier, userID string, limit int) ([]progress.Activity, error) {
	rows, err := q.Query(ctx, `
		SELECT id, action, category, points, occurred_at FROM (
			SELECT seq, id, action, category, points, occurred_at
			FROM progress_activities
			WHERE user_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	acts := []progress.Activity{}
	for rows.Next() {
		var (
			a        progress.Activity
			category string
		)
		if err := rows.Scan(&a.ID, &a.Action, &category, &a.Points, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Category = progress.ActivityCategory(category)
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// asStoreError keeps domain errors and wraps everything else as a
// persistence failure.
func asStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de
	}
	return shared.PersistenceError(op, err)
}
