package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/majorpath/majorpath-hub/internal/domain/shared"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var at = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSyncBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var goals, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventGoalCompleted, func(e shared.Event) error {
		goals = append(goals, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewGoalCompletedEvent("u1", "g1", "Read", true, at)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, 120, at)))

	assert.Equal(t, []shared.EventType{shared.EventGoalCompleted}, goals)
	assert.Equal(t, []shared.EventType{shared.EventGoalCompleted, shared.EventLevelUp}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

func TestSyncBus_HandlerFailuresDoNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("worse") }))

	err := bus.Publish(shared.NewProgressCreatedEvent("u1", at))

	require.NoError(t, err)
	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerFailures)
	assert.Zero(t, snap.HandlerSuccessRate)
}

func TestAsyncBus_CloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	var wg sync.WaitGroup
	wg.Add(5)
	require.NoError(t, bus.Subscribe(shared.EventStreakUpdated, func(shared.Event) error {
		defer wg.Done()
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", i+1, i+1, "2025-03-01", at)))
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), handled.Load())
	assert.ErrorIs(t, bus.Publish(shared.NewProgressCreatedEvent("u1", at)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
	assert.Error(t, bus.Publish(nil))
}
