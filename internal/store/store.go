// Package store persists run history, the daily request ledger, and the
// lookup cache.
package store

import (
	"context"
	"time"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, runID, dataset string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Daily request ledger
	UsageOn(ctx context.Context, day string) (int, error)
	AddUsage(ctx context.Context, day string, n int) (int, error)
	ListUsage(ctx context.Context, limit int) ([]model.DailyUsage, error)

	// Lookup cache
	GetCachedCoordinates(ctx context.Context, key string) (*geocode.Result, error)
	SetCachedCoordinates(ctx context.Context, key string, r *geocode.Result, ttl time.Duration) error
	DeleteExpiredCoordinates(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GeocodeCache adapts a Store to geocode.Cache with a fixed TTL.
type GeocodeCache struct {
	st  Store
	ttl time.Duration
}

// NewGeocodeCache returns a cache whose entries expire after ttl.
func NewGeocodeCache(st Store, ttl time.Duration) *GeocodeCache {
	return &GeocodeCache{st: st, ttl: ttl}
}

// GetCoordinates implements geocode.Cache.
func (c *GeocodeCache) GetCoordinates(ctx context.Context, key string) (*geocode.Result, bool, error) {
	r, err := c.st.GetCachedCoordinates(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return r, r != nil, nil
}

// PutCoordinates implements geocode.Cache.
func (c *GeocodeCache) PutCoordinates(ctx context.Context, key string, r *geocode.Result) error {
	return c.st.SetCachedCoordinates(ctx, key, r, c.ttl)
}
