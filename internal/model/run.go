package model

import "time"

// RowState is where a row ended up in an enrichment run.
type RowState string

const (
	RowPending             RowState = "pending"
	RowSkippedNoAddress    RowState = "skipped_no_address"
	RowSkippedAlreadyCoded RowState = "skipped_already_coded"
	RowResolved            RowState = "resolved"
	RowNotFound            RowState = "not_found"
	RowFailed              RowState = "failed"
)

// Terminal reports whether the row left the pending state.
func (s RowState) Terminal() bool {
	return s != RowPending && s != ""
}

// StopReason explains why an enrichment run ended.
type StopReason string

const (
	StopCompleted     StopReason = "completed"
	StopQuotaExceeded StopReason = "quota_exceeded"
	StopCancelled     StopReason = "cancelled"
)

// RunStatus is the lifecycle state recorded for a run.
type RunStatus string

const (
	RunStatusRunning       RunStatus = "running"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusQuotaExceeded RunStatus = "quota_exceeded"
	RunStatusCancelled     RunStatus = "cancelled"
	RunStatusFailed        RunStatus = "failed"
)

// StatusFor maps a stop reason to the run status recorded for it.
func StatusFor(reason StopReason) RunStatus {
	switch reason {
	case StopCompleted:
		return RunStatusCompleted
	case StopQuotaExceeded:
		return RunStatusQuotaExceeded
	case StopCancelled:
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}

// RunSummary reports the outcome of one enrichment run.
type RunSummary struct {
	RunID               string        `json:"run_id" yaml:"run_id"`
	Dataset             string        `json:"dataset" yaml:"dataset"`
	Total               int           `json:"total" yaml:"total"`
	Resolved            int           `json:"resolved" yaml:"resolved"`
	NotFound            int           `json:"not_found" yaml:"not_found"`
	Failed              int           `json:"failed" yaml:"failed"`
	SkippedNoAddress    int           `json:"skipped_no_address" yaml:"skipped_no_address"`
	SkippedAlreadyCoded int           `json:"skipped_already_coded" yaml:"skipped_already_coded"`
	Pending             int           `json:"pending" yaml:"pending"`
	CacheHits           int           `json:"cache_hits" yaml:"cache_hits"`
	Requests            int           `json:"requests" yaml:"requests"`
	Pauses              int           `json:"pauses" yaml:"pauses"`
	Checkpoints         int           `json:"checkpoints" yaml:"checkpoints"`
	StopReason          StopReason    `json:"stop_reason" yaml:"stop_reason"`
	DryRun              bool          `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Duration            time.Duration `json:"duration_ns" yaml:"duration"`
	Outcomes            []RowState    `json:"outcomes,omitempty" yaml:"-"`
}

// Count tallies Outcomes into the per-state counters.
func (s *RunSummary) Count() {
	s.Total = len(s.Outcomes)
	s.Resolved, s.NotFound, s.Failed = 0, 0, 0
	s.SkippedNoAddress, s.SkippedAlreadyCoded, s.Pending = 0, 0, 0
	for _, o := range s.Outcomes {
		switch o {
		case RowResolved:
			s.Resolved++
		case RowNotFound:
			s.NotFound++
		case RowFailed:
			s.Failed++
		case RowSkippedNoAddress:
			s.SkippedNoAddress++
		case RowSkippedAlreadyCoded:
			s.SkippedAlreadyCoded++
		default:
			s.Pending++
		}
	}
}

// Run is a recorded enrichment run.
type Run struct {
	ID        string      `json:"id"`
	Dataset   string      `json:"dataset"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DailyUsage is the number of geocoder requests sent on one calendar day.
type DailyUsage struct {
	Day      string `json:"day"`
	Requests int    `json:"requests"`
}
