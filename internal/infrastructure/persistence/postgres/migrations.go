package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_user_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progress_activities",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_progress (
    user_id TEXT PRIMARY KEY,

    majors_explored JSONB NOT NULL DEFAULT '[]'::jsonb,
    roadmaps_viewed JSONB NOT NULL DEFAULT '[]'::jsonb,
    assessments_taken JSONB NOT NULL DEFAULT '[]'::jsonb,
    major_progress JSONB NOT NULL DEFAULT '{}'::jsonb,
    achievements JSONB NOT NULL DEFAULT '{}'::jsonb,
    goals JSONB NOT NULL DEFAULT '[]'::jsonb,

    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date VARCHAR(10) NOT NULL DEFAULT '',
    total_days_active INTEGER NOT NULL DEFAULT 0,

    welcome_challenges_completed INTEGER NOT NULL DEFAULT 0,
    last_welcome_challenge_date VARCHAR(10) NOT NULL DEFAULT '',

    total_points INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    experience INTEGER NOT NULL DEFAULT 0,

    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak),
    CONSTRAINT valid_points CHECK (total_points >= 0 AND experience >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_user_progress_updated_at ON user_progress(updated_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROGRESS ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS progress_activities (
    seq BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES user_progress(user_id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    action TEXT NOT NULL,
    category VARCHAR(20) NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_category CHECK (category IN ('exploration', 'learning', 'assessment', 'achievement', 'goal', 'challenge'))
);

CREATE INDEX IF NOT EXISTS idx_progress_activities_user_seq ON progress_activities(user_id, seq DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS progress_activities;
`
