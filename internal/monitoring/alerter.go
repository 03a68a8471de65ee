package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRowFailureRate AlertType = "row_failure_rate"
	AlertRunFailed      AlertType = "run_failed"
	AlertDailyQuota     AlertType = "daily_quota"
)

// minAttemptsForRate keeps a handful of unlucky rows from tripping the
// failure-rate alert.
const minAttemptsForRate = 20

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg        config.MonitoringConfig
	dailyLimit int
	client     *http.Client
}

// NewAlerter creates an Alerter. dailyLimit is the configured per-day request
// ceiling; zero disables the quota alert.
func NewAlerter(cfg config.MonitoringConfig, dailyLimit int) *Alerter {
	return &Alerter{
		cfg:        cfg,
		dailyLimit: dailyLimit,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	attempted := snap.RowsAttempted()
	if attempted >= minAttemptsForRate && a.cfg.FailureRateThreshold > 0 && snap.RowFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRowFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Geocoder failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted in last %dh)",
				snap.RowFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RowsFailed, attempted, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.RowFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RowsFailed,
				"attempted":    attempted,
			},
			Timestamp: now,
		})
	}

	if snap.RunsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailed,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d enrichment run(s) failed in last %dh",
				snap.RunsFailed, snap.LookbackHours,
			),
			Details: map[string]any{
				"failed_runs": snap.RunsFailed,
				"total_runs":  snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if a.dailyLimit > 0 && a.cfg.DailyUsageWarnRatio > 0 &&
		float64(snap.DayRequests) >= a.cfg.DailyUsageWarnRatio*float64(a.dailyLimit) {
		severity := "medium"
		if snap.DayRequests >= a.dailyLimit {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Type:     AlertDailyQuota,
			Severity: severity,
			Message: fmt.Sprintf(
				"Daily geocoder usage %d of %d requests on %s",
				snap.DayRequests, a.dailyLimit, snap.Day,
			),
			Details: map[string]any{
				"day":         snap.Day,
				"requests":    snap.DayRequests,
				"daily_limit": a.dailyLimit,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
