package monitoring_test

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/pkg/types"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func monitorConfig(t *testing.T) config.MonitorConfig {
	cfg := config.Default().Monitor
	cfg.MetricsFile = filepath.Join(t.TempDir(), "logs", "metrics.json")
	return cfg
}

func result(id string, records int, d time.Duration) *scraper.Result {
	res := &scraper.Result{
		RunID:      id,
		Outcome:    scraper.OutcomeTargetReached,
		Duration:   d,
		Rejections: map[scraper.RejectReason]int{"missing_message": 2},
		Failures:   1,
	}
	res.State.ScrollAttempts = 4
	for i := 0; i < records; i++ {
		res.Records = append(res.Records, types.Post{PostID: id + string(rune('a'+i))})
	}
	return res
}

func newMonitor(t *testing.T, cfg config.MonitorConfig) *monitoring.Monitor {
	m := monitoring.NewMonitor(quietLogger(), cfg)
	m.SetClock(func() time.Time { return now })
	return m
}

func TestRecordRun(t *testing.T) {
	cfg := monitorConfig(t)
	m := newMonitor(t, cfg)

	rec := m.RecordRun("cyclists", result("run-1", 3, 10*time.Second), 2, nil)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, 3, rec.Records)
	assert.Equal(t, 2, rec.Rejected)
	assert.Equal(t, 4, rec.Scrolls)
	assert.Equal(t, now.Add(-10*time.Second), rec.StartedAt)

	m.RecordRun("cyclists", result("run-2", 1, 20*time.Second), 1, nil)
	m.RecordRun("runners", nil, 0, errors.New("navigate failed"))

	mt := m.GetMetrics()
	assert.Equal(t, 3, mt.ScrapingRuns)
	assert.Equal(t, 1, mt.FailedRuns)
	assert.Equal(t, 4, mt.TotalPosts)
	assert.Equal(t, 3, mt.SavedPosts)
	assert.Equal(t, 4, mt.RejectedElements)
	assert.Equal(t, 2, mt.ExtractFailures)
	assert.Equal(t, 10*time.Second, mt.AverageRunTime)
	assert.InDelta(t, 33.33, mt.ErrorRate, 0.01)
	assert.Equal(t, 1, mt.ConsecutiveErrors)
	require.Len(t, mt.RecentRuns, 3)
	assert.Equal(t, "navigate failed", mt.RecentRuns[2].Error)

	cyclists := mt.GroupMetrics["cyclists"]
	assert.Equal(t, 2, cyclists.Runs)
	assert.Equal(t, 4, cyclists.PostsScraped)
	assert.Equal(t, 15*time.Second, cyclists.AverageRunTime)
	assert.Equal(t, 1, mt.GroupMetrics["runners"].ErrorCount)
}

func TestMetricsPersist(t *testing.T) {
	cfg := monitorConfig(t)
	m := newMonitor(t, cfg)
	m.RecordRun("cyclists", result("run-1", 2, time.Second), 2, nil)

	reloaded := monitoring.NewMonitor(quietLogger(), cfg)
	mt := reloaded.GetMetrics()
	assert.Equal(t, 1, mt.ScrapingRuns)
	assert.Equal(t, "run-1", mt.LastRunID)
	assert.Equal(t, 2, mt.GroupMetrics["cyclists"].PostsScraped)
}

func TestRecentRunsAreCapped(t *testing.T) {
	cfg := monitorConfig(t)
	cfg.MetricsFile = ""
	m := newMonitor(t, cfg)
	for i := 0; i < 60; i++ {
		m.RecordRun("g", result("r", 1, time.Second), 1, nil)
	}
	assert.Len(t, m.GetMetrics().RecentRuns, 50)
}

func TestHealthStatus(t *testing.T) {
	m := newMonitor(t, monitorConfig(t))
	assert.Equal(t, "warning", m.GetHealthStatus().Status)

	m.RecordRun("g", result("r", 1, time.Second), 1, nil)
	health := m.GetHealthStatus()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.TotalRuns)
	assert.Equal(t, "0.00%", health.ErrorRate)

	m.RecordRun("g", nil, 0, errors.New("boom"))
	m.RecordRun("g", nil, 0, errors.New("boom"))
	health = m.GetHealthStatus()
	assert.Equal(t, "warning", health.Status)
	assert.Equal(t, "High error rate detected", health.Warning)
}

func TestAlerts(t *testing.T) {
	cfg := monitorConfig(t)
	m := newMonitor(t, cfg)
	am := monitoring.NewAlertManager(m, quietLogger())

	alerts := am.CheckAlerts()
	assert.Contains(t, alerts, "ALERT: Scraper hasn't run in over 24 hours")
	assert.Contains(t, alerts, "ALERT: No posts have been scraped")

	m.RecordRun("g", result("r", 2, time.Second), 2, nil)
	assert.Empty(t, am.CheckAlerts())

	m.RecordRun("g", result("r", 0, time.Second), 0, nil)
	assert.Contains(t, am.CheckAlerts(), "ALERT: Last run for g collected 0 posts (minimum 1)")

	for i := 0; i < 3; i++ {
		m.RecordRun("g", nil, 0, errors.New("boom"))
	}
	alerts = am.CheckAlerts()
	assert.Contains(t, alerts, "ALERT: 3 consecutive failed runs")
	assert.Contains(t, alerts, "ALERT: High error rate: 60.00%")
}

func TestGenerateReport(t *testing.T) {
	m := newMonitor(t, monitorConfig(t))
	m.RecordRun("runners", result("r1", 1, time.Second), 1, nil)
	m.RecordRun("cyclists", result("r2", 2, time.Second), 2, nil)

	report := m.GenerateReport()
	assert.Contains(t, report, "Total Scraping Runs: 2")
	assert.Contains(t, report, "Total Posts Collected: 3")
	assert.Less(t, strings.Index(report, "Group cyclists"), strings.Index(report, "Group runners"))
}
