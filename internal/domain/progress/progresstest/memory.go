// Package progresstest provides an in-memory progress.Store for tests.
package progresstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

// MemoryStore keeps records in a map and applies patches with
// progress.ApplyPatch, so it merges exactly like the real backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*progress.UserProgress
	window  int
	now     func() time.Time

	// FailNext, when set, is returned by the next store call and cleared.
	FailNext error

	// Saves counts successful Save calls.
	Saves int
}

var _ progress.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store with the given activity window.
func NewMemoryStore(window int, now func() time.Time) *MemoryStore {
	if window <= 0 {
		window = progress.DefaultActivityWindow
	}
	if now == nil {
		now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	}
	return &MemoryStore{records: make(map[string]*progress.UserProgress), window: window, now: now}
}

func (m *MemoryStore) fail(op string) error {
	if m.FailNext == nil {
		return nil
	}
	err := m.FailNext
	m.FailNext = nil
	return shared.PersistenceError(op, err)
}

// Put stores p as is, replacing any existing record.
func (m *MemoryStore) Put(p *progress.UserProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.UserID] = p.Clone()
}

// Get implements progress.Repository.
func (m *MemoryStore) Get(_ context.Context, userID string) (*progress.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Get"); err != nil {
		return nil, err
	}
	p, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// Create implements progress.Repository.
func (m *MemoryStore) Create(_ context.Context, userID string) (*progress.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Create"); err != nil {
		return nil, err
	}
	if p, ok := m.records[userID]; ok {
		return p.Clone(), nil
	}
	p := progress.NewUserProgress(userID, m.now())
	p.Version = 1
	m.records[userID] = p
	return p.Clone(), nil
}

// Save implements progress.Repository.
func (m *MemoryStore) Save(_ context.Context, userID string, patch progress.Patch) (*progress.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Save"); err != nil {
		return nil, err
	}
	p, ok := m.records[userID]
	if !ok {
		return nil, shared.NotFoundError("progress", "Save", fmt.Sprintf("no record for user %q", userID))
	}
	if patch.ExpectedVersion > 0 && p.Version != patch.ExpectedVersion {
		return nil, shared.ConflictError("Save", userID)
	}
	next := p.Clone()
	progress.ApplyPatch(next, patch, m.window, m.now())
	m.records[userID] = next
	m.Saves++
	return next.Clone(), nil
}

// AppendActivity implements progress.ActivityFeed.
func (m *MemoryStore) AppendActivity(ctx context.Context, userID string, activity progress.Activity) error {
	_, err := m.Save(ctx, userID, progress.Patch{NewActivities: []progress.Activity{activity}})
	return err
}

// RecentActivities implements progress.ActivityFeed.
func (m *MemoryStore) RecentActivities(ctx context.Context, userID string, k int) ([]progress.Activity, error) {
	p, err := m.Get(ctx, userID)
	if err != nil || p == nil {
		return []progress.Activity{}, err
	}
	return progress.NewestFirst(p.Activities, k), nil
}
