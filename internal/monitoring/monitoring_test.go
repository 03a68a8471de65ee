package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/store"
)

type mockStore struct {
	runs    []model.Run
	usage   map[string]int
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	return m.runs, m.listErr
}

func (m *mockStore) UsageOn(_ context.Context, day string) (int, error) {
	return m.usage[day], nil
}

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestCollector(st *mockStore) *Collector {
	c := NewCollector(st, time.UTC)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	st := &mockStore{
		runs: []model.Run{
			{Status: model.RunStatusCompleted, CreatedAt: fixedNow.Add(-time.Hour),
				Summary: &model.RunSummary{Resolved: 8, NotFound: 1, Failed: 1, Requests: 10}},
			{Status: model.RunStatusQuotaExceeded, CreatedAt: fixedNow.Add(-2 * time.Hour),
				Summary: &model.RunSummary{Resolved: 5, Requests: 5}},
			{Status: model.RunStatusFailed, CreatedAt: fixedNow.Add(-3 * time.Hour)},
			{Status: model.RunStatusCompleted, CreatedAt: fixedNow.Add(-48 * time.Hour),
				Summary: &model.RunSummary{Resolved: 100, Requests: 100}},
		},
		usage: map[string]int{"2026-03-02": 15},
	}

	snap, err := newTestCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal, "runs older than the window are ignored")
	assert.Equal(t, 1, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsQuotaExceeded)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 13, snap.RowsResolved)
	assert.Equal(t, 15, snap.RowsAttempted())
	assert.InDelta(t, 1.0/15.0, snap.RowFailRate, 1e-9)
	assert.Equal(t, 15, snap.Requests)
	assert.Equal(t, "2026-03-02", snap.Day)
	assert.Equal(t, 15, snap.DayRequests)
}

func TestCollector_ListError(t *testing.T) {
	st := &mockStore{listErr: errors.New("database is locked")}
	_, err := newTestCollector(st).Collect(context.Background(), 24)
	assert.Error(t, err)
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.2, DailyUsageWarnRatio: 0.9}, 900)
	snap := &MetricsSnapshot{RowsResolved: 95, RowsFailed: 5, RowFailRate: 0.05, DayRequests: 100, LookbackHours: 24}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_RowFailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.2}, 0)
	snap := &MetricsSnapshot{RowsResolved: 12, RowsFailed: 8, RowFailRate: 0.4, LookbackHours: 24}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRowFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_RateNeedsEnoughAttempts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.2}, 0)
	snap := &MetricsSnapshot{RowsResolved: 1, RowsFailed: 2, RowFailRate: 2.0 / 3.0}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_RunFailed(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{}, 0)
	alerts := a.Evaluate(&MetricsSnapshot{RunsTotal: 3, RunsFailed: 1, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailed, alerts[0].Type)
}

func TestAlerter_Evaluate_DailyQuota(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{DailyUsageWarnRatio: 0.9}, 900)

	alerts := a.Evaluate(&MetricsSnapshot{Day: "2026-03-02", DayRequests: 850})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDailyQuota, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)

	alerts = a.Evaluate(&MetricsSnapshot{Day: "2026-03-02", DayRequests: 900})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high", alerts[0].Severity)

	assert.Empty(t, NewAlerter(config.MonitoringConfig{DailyUsageWarnRatio: 0.9}, 0).Evaluate(&MetricsSnapshot{DayRequests: 5000}))
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		if err := json.NewDecoder(r.Body).Decode(&alert); err == nil && alert.Type != "" {
			received.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL}, 0)
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailed, Severity: "high"},
		{Type: AlertDailyQuota, Severity: "medium"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL}, 0)
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed}}))
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{}, 0)
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed}}))
}

func TestChecker_Check(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	st := &mockStore{
		runs:  []model.Run{{Status: model.RunStatusFailed, CreatedAt: fixedNow}},
		usage: map[string]int{},
	}
	cfg := config.MonitoringConfig{WebhookURL: srv.URL, LookbackWindowHours: 24}
	checker := NewChecker(newTestCollector(st), NewAlerter(cfg, 0), cfg)

	snap, alerts, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RunsFailed)
	require.Len(t, alerts, 1)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := &mockStore{usage: map[string]int{}}
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24}
	checker := NewChecker(newTestCollector(st), NewAlerter(cfg, 0), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}
