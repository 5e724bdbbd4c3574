package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/domain/progress"
	"github.com/majorpath/majorpath-hub/internal/domain/progress/progresstest"
	"github.com/majorpath/majorpath-hub/internal/domain/shared"
	"github.com/majorpath/majorpath-hub/pkg/timeutil"
)

type recorder struct {
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) reset() { r.events = nil }

type fixture struct {
	store    *progresstest.MemoryStore
	clock    *timeutil.FixedClock
	events   *recorder
	features *config.FeatureFlags
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	f := &fixture{
		store:    progresstest.NewMemoryStore(progress.DefaultActivityWindow, clock.Now),
		clock:    clock,
		events:   &recorder{},
		features: config.NewFeatureFlags(),
	}
	seq := 0
	f.deps = Deps{
		Store:     f.store,
		Catalog:   progress.DefaultCatalog(),
		Clock:     clock,
		Publisher: f.events,
		Features:  f.features,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}
	return f
}

func (f *fixture) nextDay(n int) {
	f.clock.Advance(time.Duration(n) * 24 * time.Hour)
}

func (f *fixture) record(t *testing.T, cmd RecordActivityCommand) *RecordActivityResult {
	t.Helper()
	res, err := NewRecordActivityHandler(f.deps).Handle(context.Background(), cmd)
	require.NoError(t, err)
	return res
}

func (f *fixture) goal(t *testing.T, cmd ManageGoalCommand) *ManageGoalResult {
	t.Helper()
	res, err := NewManageGoalHandler(f.deps).Handle(context.Background(), cmd)
	require.NoError(t, err)
	return res
}

// seed stores a record as if it had been created and saved once.
func (f *fixture) seed(mutate func(p *progress.UserProgress)) {
	p := progress.NewUserProgress("u1", f.clock.Now())
	p.Version = 1
	mutate(p)
	f.store.Put(p)
}
