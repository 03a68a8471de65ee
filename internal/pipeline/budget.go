package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Ledger persists per-day request counts across runs.
type Ledger interface {
	UsageOn(ctx context.Context, day string) (int, error)
	AddUsage(ctx context.Context, day string, n int) (int, error)
}

// Limits caps outbound requests. A value <= 0 disables that ceiling.
type Limits struct {
	PerRun int
	PerDay int
}

// Budget counts outbound geocoder requests against the per-run and per-day
// ceilings. Counts only grow.
type Budget struct {
	mu      sync.Mutex
	limits  Limits
	ledger  Ledger
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
	runUsed int
	dayUsed int
	day     string
}

// NewBudget creates a Budget. ledger may be nil, in which case the daily
// count only covers this process. loc selects the calendar day boundary.
func NewBudget(limits Limits, ledger Ledger, loc *time.Location) *Budget {
	if loc == nil {
		loc = time.UTC
	}
	return &Budget{
		limits: limits,
		ledger: ledger,
		loc:    loc,
		now:    time.Now,
		log:    zap.L(),
	}
}

// Exhausted reports whether either ceiling has been reached.
func (b *Budget) Exhausted(ctx context.Context) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(ctx)
	return b.exhaustedLocked()
}

// Reason names the ceiling that is reached, or "" when there is room.
func (b *Budget) Reason() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.limits.PerRun > 0 && b.runUsed >= b.limits.PerRun:
		return "per_run"
	case b.limits.PerDay > 0 && b.dayUsed >= b.limits.PerDay:
		return "per_day"
	default:
		return ""
	}
}

// Spend records one outbound request. The in-memory counters always move;
// an error means the ledger could not be updated.
func (b *Budget) Spend(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(ctx)
	b.runUsed++
	if b.ledger == nil {
		b.dayUsed++
		return nil
	}
	total, err := b.ledger.AddUsage(ctx, b.day, 1)
	if err != nil {
		b.dayUsed++
		return eris.Wrapf(err, "pipeline: record usage for %s", b.day)
	}
	b.dayUsed = total
	return nil
}

// Used returns the requests spent by this run.
func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runUsed
}

// DayUsed returns the requests spent on the current calendar day.
func (b *Budget) DayUsed() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dayUsed
}

func (b *Budget) exhaustedLocked() bool {
	if b.limits.PerRun > 0 && b.runUsed >= b.limits.PerRun {
		return true
	}
	return b.limits.PerDay > 0 && b.dayUsed >= b.limits.PerDay
}

// rollover starts a new daily count when the calendar day changes, seeding
// it from the ledger.
func (b *Budget) rollover(ctx context.Context) {
	today := b.now().In(b.loc).Format(time.DateOnly)
	if today == b.day {
		return
	}
	b.day = today
	b.dayUsed = 0
	if b.ledger == nil {
		return
	}
	n, err := b.ledger.UsageOn(ctx, today)
	if err != nil {
		b.log.Warn("pipeline: read daily usage failed", zap.String("day", today), zap.Error(err))
		return
	}
	b.dayUsed = n
}
