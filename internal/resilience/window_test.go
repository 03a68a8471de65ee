package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSleeper struct {
	calls []time.Duration
	err   error
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return r.err
}

func TestWindowLimiter_PausesAfterWindow(t *testing.T) {
	rec := &recordingSleeper{}
	w := NewWindowLimiter(3, time.Minute, WithSleeper(rec.sleep), WithWindowLogger(zap.NewNop()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Acquire(ctx))
	}
	assert.Empty(t, rec.calls, "first window should not pause")

	require.NoError(t, w.Acquire(ctx))
	assert.Equal(t, []time.Duration{time.Minute}, rec.calls)
	assert.Equal(t, 1, w.Pauses())

	require.NoError(t, w.Acquire(ctx))
	require.NoError(t, w.Acquire(ctx))
	assert.Len(t, rec.calls, 1, "second window still has room")

	require.NoError(t, w.Acquire(ctx))
	assert.Len(t, rec.calls, 2)
	assert.Equal(t, 2, w.Pauses())
}

func TestWindowLimiter_Disabled(t *testing.T) {
	rec := &recordingSleeper{}
	w := NewWindowLimiter(0, time.Minute, WithSleeper(rec.sleep))
	for i := 0; i < 500; i++ {
		require.NoError(t, w.Acquire(context.Background()))
	}
	assert.Empty(t, rec.calls)
	assert.Equal(t, 0, w.Pauses())
}

func TestWindowLimiter_NilIsUnlimited(t *testing.T) {
	var w *WindowLimiter
	require.NoError(t, w.Acquire(context.Background()))
	assert.Equal(t, 0, w.Pauses())
}

func TestWindowLimiter_CancelDuringPause(t *testing.T) {
	w := NewWindowLimiter(1, time.Hour, WithWindowLogger(zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Acquire(ctx))

	done := make(chan error, 1)
	go func() { done <- w.Acquire(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after cancel")
	}
	assert.Equal(t, 0, w.Pauses())
}

func TestWindowLimiter_SleeperErrorKeepsWindowFull(t *testing.T) {
	rec := &recordingSleeper{err: context.Canceled}
	w := NewWindowLimiter(1, time.Second, WithSleeper(rec.sleep), WithWindowLogger(zap.NewNop()))

	require.NoError(t, w.Acquire(context.Background()))
	assert.ErrorIs(t, w.Acquire(context.Background()), context.Canceled)

	rec.err = nil
	require.NoError(t, w.Acquire(context.Background()))
	assert.Len(t, rec.calls, 2, "window should still be full after a failed pause")
}

func TestWindowLimiter_CancelledContextBeforeAcquire(t *testing.T) {
	w := NewWindowLimiter(10, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Acquire(ctx), context.Canceled)
}

func TestSleepCtx_ZeroDuration(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), 0))
}
