package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/dataset"
	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/pipeline"
	"github.com/sells-group/geo-enrich/internal/resilience"
	"github.com/sells-group/geo-enrich/internal/store"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// enrichEnv holds the store shared by the run, serve, and runs commands.
type enrichEnv struct {
	cfg   *config.Config
	Store store.Store
}

// Close releases the store.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// runOptions are per-invocation overrides of the configured behaviour.
type runOptions struct {
	Output      string // persist destination; empty means the input file
	MaxRequests int    // overrides quota.max_requests_per_run when > 0
	DryRun      bool
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	dsn := c.Store.DatabaseURL
	if dsn == "" {
		dsn = "geo-enrich.db"
	}
	st, err := store.NewSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv opens and migrates the store. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*enrichEnv, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	return &enrichEnv{cfg: c, Store: st}, nil
}

// newClient builds the geocoder client from configuration.
func newClient(c *config.Config, key config.Secret) geocode.Client {
	return geocode.NewClient(key.Reveal(),
		geocode.WithBaseURL(c.Geocoder.BaseURL),
		geocode.WithTimeout(c.Geocoder.Timeout()),
		geocode.WithRateLimit(c.Geocoder.RateLimitRPS),
		geocode.WithLanguage(c.Geocoder.Language),
	)
}

// newPipeline wires the client, window limiter, budget, cache, and run
// history into a Pipeline.
func (e *enrichEnv) newPipeline(client geocode.Client, opts runOptions) *pipeline.Pipeline {
	c := e.cfg

	limits := pipeline.Limits{
		PerRun: c.Quota.MaxRequestsPerRun,
		PerDay: c.Quota.DailyLimit,
	}
	if opts.MaxRequests > 0 {
		limits.PerRun = opts.MaxRequests
	}

	var ledger pipeline.Ledger
	if e.Store != nil {
		ledger = e.Store
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithLimiter(resilience.WindowFromConfig(c.RateWindow, zap.L())),
		pipeline.WithBudget(pipeline.NewBudget(limits, ledger, c.Quota.Location())),
	}
	if e.Store != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(e.Store))
		if c.Cache.Enabled {
			ttl := time.Duration(c.Cache.TTLDays) * 24 * time.Hour
			pipeOpts = append(pipeOpts, pipeline.WithCache(store.NewGeocodeCache(e.Store, ttl)))
		}
	}

	return pipeline.New(pipeline.Config{
		AddressColumn:    c.Dataset.AddressColumn,
		CoordinateColumn: c.Dataset.CoordinateColumn,
		Retry:            resilience.RetryFromConfig(c.Retry),
		CheckpointEvery:  c.Checkpoint.Every,
		DryRun:           opts.DryRun,
	}, client, pipeOpts...)
}

// enrichFile loads path, runs the pipeline, and persists to opts.Output (or
// back to path).
func (e *enrichEnv) enrichFile(ctx context.Context, path string, client geocode.Client, opts runOptions) (*model.RunSummary, error) {
	ds, err := dataset.Load(ctx, path, dataset.WithCharset(e.cfg.Dataset.CSVCharset))
	if err != nil {
		return nil, err
	}

	dest := opts.Output
	if dest == "" {
		dest = path
	}
	var persist pipeline.PersistFunc
	if !opts.DryRun {
		persist = pipeline.ToFile(dest)
	}

	if e.cfg.Cache.Enabled && e.Store != nil {
		if n, err := e.Store.DeleteExpiredCoordinates(ctx); err != nil {
			zap.L().Warn("prune lookup cache failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Debug("pruned lookup cache", zap.Int("entries", n))
		}
	}

	return e.newPipeline(client, opts).Run(ctx, ds, path, persist)
}
