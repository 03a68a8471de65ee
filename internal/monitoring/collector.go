// Package monitoring watches run history and the daily request ledger and
// posts webhook alerts when geocoding health degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/store"
)

// MetricsSnapshot holds a point-in-time view of geocoding health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal         int `json:"runs_total" yaml:"runs_total"`
	RunsCompleted     int `json:"runs_completed" yaml:"runs_completed"`
	RunsQuotaExceeded int `json:"runs_quota_exceeded" yaml:"runs_quota_exceeded"`
	RunsCancelled     int `json:"runs_cancelled" yaml:"runs_cancelled"`
	RunsFailed        int `json:"runs_failed" yaml:"runs_failed"`
	RunsRunning       int `json:"runs_running" yaml:"runs_running"`

	// Row outcomes summed over those runs.
	RowsResolved int     `json:"rows_resolved" yaml:"rows_resolved"`
	RowsNotFound int     `json:"rows_not_found" yaml:"rows_not_found"`
	RowsFailed   int     `json:"rows_failed" yaml:"rows_failed"`
	RowFailRate  float64 `json:"row_fail_rate" yaml:"row_fail_rate"`
	Requests     int     `json:"requests" yaml:"requests"`

	// Ledger for the current quota day.
	Day         string `json:"day" yaml:"day"`
	DayRequests int    `json:"day_requests" yaml:"day_requests"`

	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// RowsAttempted counts rows that reached the geocoder.
func (s *MetricsSnapshot) RowsAttempted() int {
	return s.RowsResolved + s.RowsNotFound + s.RowsFailed
}

// RunSource is the part of the store the collector reads.
type RunSource interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	UsageOn(ctx context.Context, day string) (int, error)
}

// Collector gathers metrics from run history and the usage ledger.
type Collector struct {
	src RunSource
	loc *time.Location
	now func() time.Time
}

// NewCollector creates a collector. loc selects the quota day boundary.
func NewCollector(src RunSource, loc *time.Location) *Collector {
	if loc == nil {
		loc = time.UTC
	}
	return &Collector{src: src, loc: loc, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now.UTC(),
		Day:           now.In(c.loc).Format(time.DateOnly),
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.src.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusQuotaExceeded:
			snap.RunsQuotaExceeded++
		case model.RunStatusCancelled:
			snap.RunsCancelled++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Summary != nil {
			snap.RowsResolved += r.Summary.Resolved
			snap.RowsNotFound += r.Summary.NotFound
			snap.RowsFailed += r.Summary.Failed
			snap.Requests += r.Summary.Requests
		}
	}
	if attempted := snap.RowsAttempted(); attempted > 0 {
		snap.RowFailRate = float64(snap.RowsFailed) / float64(attempted)
	}

	used, err := c.src.UsageOn(ctx, snap.Day)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read daily usage")
	}
	snap.DayRequests = used

	return snap, nil
}
