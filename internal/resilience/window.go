package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WindowLimiter permits MaxRequests acquisitions, then makes the next caller
// wait out the cooldown before a fresh window starts. It does not smooth
// timing inside a window.
type WindowLimiter struct {
	mu       sync.Mutex
	max      int
	cooldown time.Duration
	count    int
	pauses   int
	sleep    func(ctx context.Context, d time.Duration) error
	log      *zap.Logger
}

// WindowOption configures a WindowLimiter.
type WindowOption func(*WindowLimiter)

// WithSleeper replaces the blocking wait, mainly for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) WindowOption {
	return func(w *WindowLimiter) {
		w.sleep = fn
	}
}

// WithWindowLogger sets the logger used to announce pauses.
func WithWindowLogger(log *zap.Logger) WindowOption {
	return func(w *WindowLimiter) {
		w.log = log
	}
}

// NewWindowLimiter returns a limiter allowing maxRequests per window.
// maxRequests <= 0 disables limiting.
func NewWindowLimiter(maxRequests int, cooldown time.Duration, opts ...WindowOption) *WindowLimiter {
	w := &WindowLimiter{
		max:      maxRequests,
		cooldown: cooldown,
		sleep:    sleepCtx,
		log:      zap.L(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Acquire takes one slot, blocking for the cooldown first when the current
// window is full. It returns the context error if ctx ends during the pause.
func (w *WindowLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w == nil || w.max <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count >= w.max {
		w.log.Info("rate window exhausted, pausing",
			zap.Int("window", w.max),
			zap.Duration("cooldown", w.cooldown),
		)
		if err := w.sleep(ctx, w.cooldown); err != nil {
			return err
		}
		w.count = 0
		w.pauses++
	}
	w.count++
	return nil
}

// Pauses returns how many cooldowns have been served.
func (w *WindowLimiter) Pauses() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pauses
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
