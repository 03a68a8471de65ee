package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/geo-enrich/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Dataset:   "uploads/clients.xlsx",
			Status:    model.RunStatusQuotaExceeded,
			Summary:   &model.RunSummary{Resolved: 900, Pending: 120, Requests: 900},
			CreatedAt: now,
			UpdatedAt: now.Add(20 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Dataset:   "clients.csv",
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "uploads/clients.xlsx")
	assert.Contains(t, out, "quota_exceeded")
	assert.Contains(t, out, "900")
	assert.Contains(t, out, "2026-03-15 10:30")
	assert.Contains(t, out, "running")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	runs := []model.Run{{
		ID:     "run-1",
		Status: model.RunStatusFailed,
		Error:  "dataset persist clients.xlsx: permission denied",
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "permission denied")
}

func TestFormatUsage(t *testing.T) {
	usage := []model.DailyUsage{
		{Day: "2026-03-02", Requests: 950},
		{Day: "2026-03-01", Requests: 120},
	}

	var buf bytes.Buffer
	formatUsage(&buf, usage, 900)
	out := buf.String()
	assert.Contains(t, out, "REMAINING")
	assert.Contains(t, out, "2026-03-01")
	assert.Contains(t, out, "780")

	buf.Reset()
	formatUsage(&buf, usage, 0)
	assert.Contains(t, buf.String(), "-")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Моск...", truncate("Москва, Тверская", 7))
}
