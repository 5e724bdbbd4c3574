package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	r := fast(WithMaxAttempts(4), WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }))

	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0

	err := fast(WithMaxAttempts(5)).Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(boom)
	})

	assert.Same(t, boom, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.NoError(t, Permanent(nil))
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0

	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		attempts++
		return boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), fast(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("dial tcp: refused")
		}
		return "conn", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "conn", got)
}

func TestWith_DoesNotMutateBase(t *testing.T) {
	base := ConnectRetrier()
	derived := base.With(WithMaxAttempts(1))

	assert.Equal(t, 5, base.config.MaxAttempts)
	assert.Equal(t, 1, derived.config.MaxAttempts)
}
