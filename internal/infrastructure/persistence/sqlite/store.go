// Package sqlite implements the progress record store on SQLite. Each
// record is one JSON document guarded by a version column, which makes
// the compare-and-swap a single conditional UPDATE.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_progress_updated_at ON user_progress(updated_at);
`

// Store implements progress.Store on a database/sql handle.
type Store struct {
	db     *sql.DB
	window int
	now    func() time.Time
}

var _ progress.Store = (*Store)(nil)

// Open opens (or creates) the database file at path with the pure-Go
// driver and applies the schema.
func Open(ctx context.Context, path string, window int, now func() time.Time) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	s := New(db, window, now)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open handle. Callers own the driver choice.
func New(db *sql.DB, window int, now func() time.Time) *Store {
	if window <= 0 {
		window = progress.DefaultActivityWindow
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{db: db, window: window, now: now}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get returns the stored record, or nil when absent.
func (s *Store) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, err := load(ctx, s.db, userID)
	if err != nil {
		return nil, shared.PersistenceError("Get", err)
	}
	return p, nil
}

// Create inserts a zero-valued record. An existing record is returned as is.
func (s *Store) Create(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p := progress.NewUserProgress(userID, s.now())
	p.Version = 1

	data, err := json.Marshal(p)
	if err != nil {
		return nil, shared.PersistenceError("Create", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, p.Version, string(data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, shared.PersistenceError("Create", err)
	}

	stored, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, shared.PersistenceError("Create", fmt.Errorf("record %q vanished after insert", userID))
	}
	return stored, nil
}

// Save applies patch inside a transaction and writes the document back
// only if nobody else bumped the version in between.
func (s *Store) Save(ctx context.Context, userID string, patch progress.Patch) (*progress.UserProgress, error) {
	var out *progress.UserProgress
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if p == nil {
			return shared.NotFoundError("progress", "Save", fmt.Sprintf("no record for user %q", userID))
		}
		if patch.ExpectedVersion > 0 && p.Version != patch.ExpectedVersion {
			return shared.ConflictError("Save", userID)
		}

		prev := p.Version
		progress.ApplyPatch(p, patch, s.window, s.now())
		if err := write(ctx, tx, p, prev); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, asStoreError("Save", err)
	}
	return out, nil
}

// AppendActivity adds one entry to the log.
func (s *Store) AppendActivity(ctx context.Context, userID string, activity progress.Activity) error {
	_, err := s.Save(ctx, userID, progress.Patch{NewActivities: []progress.Activity{activity}})
	return err
}

// RecentActivities returns up to k entries, newest first.
func (s *Store) RecentActivities(ctx context.Context, userID string, k int) ([]progress.Activity, error) {
	p, err := s.Get(ctx, userID)
	if err != nil || p == nil {
		return []progress.Activity{}, err
	}
	return progress.NewestFirst(p.Activities, k), nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func load(ctx context.Context, q querier, userID string) (*progress.UserProgress, error) {
	var data string
	err := q.QueryRowContext(ctx, "SELECT data FROM user_progress WHERE user_id = ?", userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p progress.UserProgress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", userID, err)
	}
	p.Normalize()
	return &p, nil
}

func write(ctx context.Context, q querier, p *progress.UserProgress, prevVersion int64) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", p.UserID, err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE user_progress SET version = ?, data = ?, updated_at = ?
		WHERE user_id = ? AND version = ?
	`, p.Version, string(data), p.UpdatedAt, p.UserID, prevVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.ConflictError("Save", p.UserID)
	}
	return nil
}

func asStoreError(op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de
	}
	return shared.PersistenceError(op, err)
}
