package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/scraper"
)

const maxRecentRuns = 50

type Metrics struct {
	ScrapingRuns      int                    `json:"scraping_runs"`
	FailedRuns        int                    `json:"failed_runs"`
	TotalPosts        int                    `json:"total_posts"`
	SavedPosts        int                    `json:"saved_posts"`
	RejectedElements  int                    `json:"rejected_elements"`
	ExtractFailures   int                    `json:"extract_failures"`
	LastRun           time.Time              `json:"last_run"`
	LastRunID         string                 `json:"last_run_id"`
	AverageRunTime    time.Duration          `json:"average_run_time"`
	ErrorRate         float64                `json:"error_rate"`
	ConsecutiveErrors int                    `json:"consecutive_errors"`
	GroupMetrics      map[string]GroupMetric `json:"group_metrics"`
	RecentRuns        []RunRecord            `json:"recent_runs"`
}

type GroupMetric struct {
	Runs           int           `json:"runs"`
	PostsScraped   int           `json:"posts_scraped"`
	LastScraped    time.Time     `json:"last_scraped"`
	AverageRunTime time.Duration `json:"average_run_time"`
	ErrorCount     int           `json:"error_count"`
}

type RunRecord struct {
	RunID     string          `json:"run_id"`
	Group     string          `json:"group"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Outcome   scraper.Outcome `json:"outcome,omitempty"`
	Records   int             `json:"records"`
	Saved     int             `json:"saved"`
	Rejected  int             `json:"rejected"`
	Scrolls   int             `json:"scrolls"`
	Error     string          `json:"error,omitempty"`
}

type Monitor struct {
	mu          sync.RWMutex
	metrics     *Metrics
	cfg         config.MonitorConfig
	now         func() time.Time
	logger      *logrus.Logger
	metricsFile string
}

func NewMonitor(logger *logrus.Logger, cfg config.MonitorConfig) *Monitor {
	monitor := &Monitor{
		metrics: &Metrics{
			GroupMetrics: make(map[string]GroupMetric),
		},
		cfg:         cfg,
		now:         time.Now,
		logger:      logger,
		metricsFile: cfg.MetricsFile,
	}

	monitor.loadMetrics()
	return monitor
}

// SetClock replaces the time source.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// RecordRun folds one scrape of group into the metrics and persists them.
// res may be nil when the run failed before collecting anything.
func (m *Monitor) RecordRun(group string, res *scraper.Result, saved int, runErr error) RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := RunRecord{Group: group, StartedAt: now, Saved: saved}
	if res != nil {
		rec.RunID = res.RunID
		rec.Duration = res.Duration
		rec.StartedAt = now.Add(-res.Duration)
		rec.Outcome = res.Outcome
		rec.Records = len(res.Records)
		rec.Rejected = res.Rejected()
		rec.Scrolls = res.State.ScrollAttempts
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	mt := m.metrics
	mt.ScrapingRuns++
	mt.TotalPosts += rec.Records
	mt.SavedPosts += saved
	mt.RejectedElements += rec.Rejected
	if res != nil {
		mt.ExtractFailures += res.Failures
	}
	mt.LastRun = now
	mt.LastRunID = rec.RunID
	mt.AverageRunTime = runningMean(mt.AverageRunTime, rec.Duration, mt.ScrapingRuns)

	if runErr != nil {
		mt.FailedRuns++
		mt.ConsecutiveErrors++
	} else {
		mt.ConsecutiveErrors = 0
	}
	mt.ErrorRate = float64(mt.FailedRuns) / float64(mt.ScrapingRuns) * 100

	gm := mt.GroupMetrics[group]
	gm.Runs++
	gm.PostsScraped += rec.Records
	gm.LastScraped = now
	if runErr != nil {
		gm.ErrorCount++
	}
	gm.AverageRunTime = runningMean(gm.AverageRunTime, rec.Duration, gm.Runs)
	mt.GroupMetrics[group] = gm

	mt.RecentRuns = append(mt.RecentRuns, rec)
	if len(mt.RecentRuns) > maxRecentRuns {
		mt.RecentRuns = mt.RecentRuns[len(mt.RecentRuns)-maxRecentRuns:]
	}

	m.saveMetrics()

	m.logger.Infof("Recorded scraping run %s for group %s: %d posts (%d saved), %v duration, outcome=%s",
		rec.RunID, group, rec.Records, saved, rec.Duration, rec.Outcome)
	return rec
}

func runningMean(mean, sample time.Duration, n int) time.Duration {
	if n <= 1 {
		return sample
	}
	return mean + (sample-mean)/time.Duration(n)
}

// GetMetrics returns a copy of the current metrics.
func (m *Monitor) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := *m.metrics
	c.GroupMetrics = make(map[string]GroupMetric, len(m.metrics.GroupMetrics))
	for k, v := range m.metrics.GroupMetrics {
		c.GroupMetrics[k] = v
	}
	c.RecentRuns = append([]RunRecord(nil), m.metrics.RecentRuns...)
	return c
}

type HealthStatus struct {
	Status         string `json:"status"`
	LastRun        string `json:"last_run"`
	TotalRuns      int    `json:"total_runs"`
	ErrorRate      string `json:"error_rate"`
	AverageRuntime string `json:"average_runtime"`
	Warning        string `json:"warning,omitempty"`
}

func (m *Monitor) GetHealthStatus() HealthStatus {
	mt := m.GetMetrics()
	now := m.clock()

	status := HealthStatus{
		Status:         "healthy",
		LastRun:        mt.LastRun.Format(time.RFC3339),
		TotalRuns:      mt.ScrapingRuns,
		ErrorRate:      fmt.Sprintf("%.2f%%", mt.ErrorRate),
		AverageRuntime: mt.AverageRunTime.String(),
	}

	if now.Sub(mt.LastRun) > 24*time.Hour {
		status.Status = "warning"
		status.Warning = "No scraping runs in the last 24 hours"
	}

	if mt.ErrorRate > m.cfg.MaxFailureRate*100 {
		status.Status = "warning"
		status.Warning = "High error rate detected"
	}

	return status
}

func (m *Monitor) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

func (m *Monitor) GenerateReport() string {
	mt := m.GetMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, `
Facebook Scraper Monitoring Report
==================================
Generated: %s

Overall Statistics:
- Total Scraping Runs: %d
- Failed Runs: %d
- Total Posts Collected: %d
- New Posts Saved: %d
- Rejected Elements: %d
- Error Rate: %.2f%%
- Average Run Time: %s
- Last Run: %s

Group Performance:
`,
		m.clock().Format("2006-01-02 15:04:05"),
		mt.ScrapingRuns,
		mt.FailedRuns,
		mt.TotalPosts,
		mt.SavedPosts,
		mt.RejectedElements,
		mt.ErrorRate,
		mt.AverageRunTime,
		mt.LastRun.Format("2006-01-02 15:04:05"),
	)

	groups := make([]string, 0, len(mt.GroupMetrics))
	for g := range mt.GroupMetrics {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		metric := mt.GroupMetrics[g]
		fmt.Fprintf(&b, `
- Group %s:
  Runs: %d
  Posts Scraped: %d
  Last Scraped: %s
  Average Runtime: %s
  Errors: %d
`,
			g,
			metric.Runs,
			metric.PostsScraped,
			metric.LastScraped.Format("2006-01-02 15:04:05"),
			metric.AverageRunTime,
			metric.ErrorCount,
		)
	}

	return b.String()
}

func (m *Monitor) loadMetrics() {
	if m.metricsFile == "" {
		return
	}
	if _, err := os.Stat(m.metricsFile); os.IsNotExist(err) {
		m.logger.Info("No existing metrics file found, starting fresh")
		return
	}

	data, err := os.ReadFile(m.metricsFile)
	if err != nil {
		m.logger.Warnf("Failed to read metrics file: %v", err)
		return
	}

	if err := json.Unmarshal(data, m.metrics); err != nil {
		m.logger.Warnf("Failed to parse metrics file: %v", err)
		return
	}
	if m.metrics.GroupMetrics == nil {
		m.metrics.GroupMetrics = make(map[string]GroupMetric)
	}

	m.logger.Info("Loaded existing metrics from file")
}

// saveMetrics must be called with mu held.
func (m *Monitor) saveMetrics() {
	if m.metricsFile == "" {
		return
	}
	data, err := json.MarshalIndent(m.metrics, "", "  ")
	if err != nil {
		m.logger.Errorf("Failed to marshal metrics: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.metricsFile), 0755); err != nil {
		m.logger.Errorf("Failed to create metrics directory: %v", err)
		return
	}
	if err := os.WriteFile(m.metricsFile, data, 0644); err != nil {
		m.logger.Errorf("Failed to save metrics: %v", err)
		return
	}
}

// AlertManager handles alerting based on metrics
type AlertManager struct {
	monitor *Monitor
	cfg     config.MonitorConfig
	logger  *logrus.Logger
}

func NewAlertManager(monitor *Monitor, logger *logrus.Logger) *AlertManager {
	return &AlertManager{
		monitor: monitor,
		cfg:     monitor.cfg,
		logger:  logger,
	}
}

func (am *AlertManager) CheckAlerts() []string {
	var alerts []string
	mt := am.monitor.GetMetrics()
	now := am.monitor.clock()

	if now.Sub(mt.LastRun) > 25*time.Hour {
		alerts = append(alerts, "ALERT: Scraper hasn't run in over 24 hours")
	}

	if mt.ScrapingRuns > 0 && mt.ErrorRate > am.cfg.MaxFailureRate*100 {
		alerts = append(alerts, fmt.Sprintf("ALERT: High error rate: %.2f%%", mt.ErrorRate))
	}

	if am.cfg.MaxConsecutiveErrors > 0 && mt.ConsecutiveErrors >= am.cfg.MaxConsecutiveErrors {
		alerts = append(alerts, fmt.Sprintf("ALERT: %d consecutive failed runs", mt.ConsecutiveErrors))
	}

	if n := len(mt.RecentRuns); n > 0 {
		last := mt.RecentRuns[n-1]
		if last.Error == "" && last.Records < am.cfg.MinPostsPerRun {
			alerts = append(alerts, fmt.Sprintf("ALERT: Last run for %s collected %d posts (minimum %d)",
				last.Group, last.Records, am.cfg.MinPostsPerRun))
		}
	}

	if mt.TotalPosts == 0 {
		alerts = append(alerts, "ALERT: No posts have been scraped")
	}

	return alerts
}

func (am *AlertManager) SendAlerts(alerts []string) {
	for _, alert := range alerts {
		am.logger.Warn(alert)
	}
}
