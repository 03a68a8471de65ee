package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/dataset"
	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/resilience"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// Config controls one enrichment run.
type Config struct {
	AddressColumn    string
	CoordinateColumn string
	Retry            resilience.RetryConfig
	// CheckpointEvery persists the dataset after every N resolved rows. Zero
	// disables checkpoints; the final persist always happens.
	CheckpointEvery int
	// DryRun classifies rows without sending requests or persisting.
	DryRun bool
}

// Recorder stores run history.
type Recorder interface {
	CreateRun(ctx context.Context, runID, dataset string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary, runErr error) error
}

// PersistFunc writes the dataset to its destination.
type PersistFunc func(ctx context.Context, ds *dataset.Dataset) error

// ToFile persists to path with dataset.Persist.
func ToFile(path string) PersistFunc {
	return func(ctx context.Context, ds *dataset.Dataset) error {
		return dataset.Persist(ctx, ds, path)
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimiter sets the rate window applied before every request.
func WithLimiter(l *resilience.WindowLimiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithBudget sets the request quota.
func WithBudget(b *Budget) Option {
	return func(p *Pipeline) { p.budget = b }
}

// WithRecorder enables run history.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithCache serves repeat addresses without spending quota.
func WithCache(c geocode.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Pipeline resolves the address column of a dataset into the coordinate
// column, one row at a time in row order.
type Pipeline struct {
	cfg      Config
	client   geocode.Client
	limiter  *resilience.WindowLimiter
	budget   *Budget
	recorder Recorder
	cache    geocode.Cache
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Pipeline around client.
func New(cfg Config, client geocode.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		client: client,
		log:    zap.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run enriches ds and persists it. name labels the dataset in logs and run
// history.
//
// Rows are visited in order. A row with no address or with coordinates
// already present is skipped without a request. When the budget runs out the
// loop halts and the remaining rows stay pending. A lookup failure marks only
// that row as failed. The dataset is persisted once after the loop (and at
// checkpoints), including when the context is cancelled, in which case the
// context error is returned together with the summary.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, name string, persist PersistFunc) (*model.RunSummary, error) {
	if strings.TrimSpace(p.cfg.AddressColumn) == "" || strings.TrimSpace(p.cfg.CoordinateColumn) == "" {
		return nil, eris.New("pipeline: address and coordinate columns must be set")
	}
	if persist == nil && !p.cfg.DryRun {
		return nil, eris.New("pipeline: no persist destination")
	}

	start := p.now()
	summary := &model.RunSummary{
		RunID:    uuid.NewString(),
		Dataset:  name,
		DryRun:   p.cfg.DryRun,
		Outcomes: make([]model.RowState, ds.Len()),
	}
	for i := range summary.Outcomes {
		summary.Outcomes[i] = model.RowPending
	}

	log := p.log.With(zap.String("run_id", summary.RunID), zap.String("dataset", name))
	log.Info("pipeline: starting run",
		zap.Int("rows", ds.Len()),
		zap.Bool("dry_run", p.cfg.DryRun),
	)

	if p.recorder != nil && !p.cfg.DryRun {
		if _, err := p.recorder.CreateRun(ctx, summary.RunID, name); err != nil {
			log.Warn("pipeline: failed to record run start", zap.Error(err))
		}
	}

	if ds.EnsureColumn(p.cfg.CoordinateColumn) {
		log.Debug("pipeline: added coordinate column", zap.String("column", p.cfg.CoordinateColumn))
	}

	pausesBefore := p.limiter.Pauses()
	lookup := p.lookupChain(summary)
	retryCfg := p.retryConfig(ctx)

	stop := model.StopCompleted
	resolvedSinceCheckpoint := 0

rows:
	for i := 0; i < ds.Len(); i++ {
		if ctx.Err() != nil {
			stop = model.StopCancelled
			break
		}

		address := NormalizeAddress(ds.Get(i, p.cfg.AddressColumn))
		if address == "" {
			summary.Outcomes[i] = model.RowSkippedNoAddress
			continue
		}
		if strings.TrimSpace(ds.Get(i, p.cfg.CoordinateColumn)) != "" {
			summary.Outcomes[i] = model.RowSkippedAlreadyCoded
			continue
		}
		if p.cfg.DryRun {
			continue
		}
		if p.budget.Exhausted(ctx) {
			stop = model.StopQuotaExceeded
			log.Info("pipeline: request budget exhausted",
				zap.Int("row", i),
				zap.String("ceiling", p.budget.Reason()),
				zap.Int("requests", p.budget.Used()),
			)
			break
		}

		cfg := retryCfg
		cfg.OnRetry = resilience.RetryLogger(log, i)
		res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*geocode.Result, error) {
			return lookup.Lookup(ctx, address)
		})

		switch {
		case err != nil && ctx.Err() != nil:
			stop = model.StopCancelled
			break rows
		case err != nil:
			summary.Outcomes[i] = model.RowFailed
			log.Warn("pipeline: lookup failed",
				zap.Int("row", i),
				zap.String("kind", string(model.KindOf(err))),
				zap.String("error", geocode.RedactSecrets(err.Error())),
			)
			continue
		case !res.Found:
			summary.Outcomes[i] = model.RowNotFound
			log.Debug("pipeline: address not found", zap.Int("row", i))
			continue
		}

		if err := ds.Set(i, p.cfg.CoordinateColumn, res.Coordinates()); err != nil {
			return nil, eris.Wrapf(err, "pipeline: write row %d", i)
		}
		summary.Outcomes[i] = model.RowResolved
		if res.Cached {
			summary.CacheHits++
		}

		resolvedSinceCheckpoint++
		if p.cfg.CheckpointEvery > 0 && resolvedSinceCheckpoint >= p.cfg.CheckpointEvery {
			resolvedSinceCheckpoint = 0
			if err := persist(ctx, ds); err != nil {
				log.Warn("pipeline: checkpoint failed", zap.Int("row", i), zap.Error(err))
			} else {
				summary.Checkpoints++
				log.Debug("pipeline: checkpoint written", zap.Int("row", i))
			}
		}
	}

	summary.StopReason = stop
	summary.Pauses = p.limiter.Pauses() - pausesBefore
	summary.Count()

	var runErr error
	if !p.cfg.DryRun {
		// Progress is written even when ctx is already cancelled.
		persistCtx := context.WithoutCancel(ctx)
		if err := persist(persistCtx, ds); err != nil {
			runErr = eris.Wrap(err, "pipeline: final persist")
		}
	}
	if stop == model.StopCancelled {
		runErr = errors.Join(ctx.Err(), runErr)
	}
	summary.Duration = p.now().Sub(start)

	if p.recorder != nil && !p.cfg.DryRun {
		if err := p.recorder.CompleteRun(context.WithoutCancel(ctx), summary.RunID, summary, runErr); err != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(err))
		}
	}

	log.Info("pipeline: run finished",
		zap.String("stop_reason", string(summary.StopReason)),
		zap.Int("resolved", summary.Resolved),
		zap.Int("not_found", summary.NotFound),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped_no_address", summary.SkippedNoAddress),
		zap.Int("skipped_already_coded", summary.SkippedAlreadyCoded),
		zap.Int("pending", summary.Pending),
		zap.Int("requests", summary.Requests),
		zap.Int("cache_hits", summary.CacheHits),
		zap.Duration("duration", summary.Duration),
	)

	return summary, runErr
}

// lookupChain stacks the cache (when configured) over the metered client.
func (p *Pipeline) lookupChain(summary *model.RunSummary) geocode.Client {
	var c geocode.Client = &meteredClient{p: p, summary: summary}
	if p.cache != nil {
		c = geocode.NewCachedClient(c, p.cache)
	}
	return c
}

// retryConfig retries transient failures only while budget remains, since
// every attempt is a billed request.
func (p *Pipeline) retryConfig(ctx context.Context) resilience.RetryConfig {
	cfg := p.cfg.Retry
	cfg.ShouldRetry = func(err error) bool {
		return resilience.IsTransient(err) && !p.budget.Exhausted(ctx)
	}
	return cfg
}

// meteredClient waits for the rate window and spends budget before each
// outbound request.
type meteredClient struct {
	p       *Pipeline
	summary *model.RunSummary
}

func (m *meteredClient) Lookup(ctx context.Context, address string) (*geocode.Result, error) {
	if err := m.p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := m.p.budget.Spend(ctx); err != nil {
		m.p.log.Warn("pipeline: usage ledger update failed", zap.Error(err))
	}
	m.summary.Requests++
	return m.p.client.Lookup(ctx, address)
}
