// Package procman finds and stops browser-driver processes left behind by
// earlier automation sessions.
package procman

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindDriver     Kind = "driver"
	KindAutomation Kind = "automation"
	KindRegular    Kind = "regular"
)

// DefaultIndicators are command-line fragments that mark a browser process
// as started by automation.
var DefaultIndicators = []string{
	"--remote-debugging-port",
	"--user-data-dir",
	"--profile-directory",
	"--no-first-run",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-renderer-backgrounding",
	"--disable-features=TranslateUI",
	"--disable-ipc-flooding-protection",
	"--disable-extensions",
	"--disable-plugins",
	"--disable-sync",
	"--disable-translate",
	"--disable-web-security",
	"--allow-running-insecure-content",
	"--disable-features=VizDisplayCompositor",
	"--enable-automation",
}

var driverNames = []string{"chromedriver", "geckodriver"}

var browserNames = []string{"chrome", "chromium"}

type Process struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	Cmdline    []string  `json:"cmdline"`
	CreateTime time.Time `json:"create_time"`
	Kind       Kind      `json:"kind"`
}

type Report struct {
	Drivers    []Process `json:"drivers"`
	Automation []Process `json:"automation"`
	Regular    []Process `json:"regular"`
}

// Stray returns drivers followed by automation browsers.
func (r Report) Stray() []Process {
	out := make([]Process, 0, len(r.Drivers)+len(r.Automation))
	out = append(out, r.Drivers...)
	return append(out, r.Automation...)
}

// Source lists and signals OS processes.
type Source interface {
	Processes(ctx context.Context) ([]Process, error)
	Terminate(ctx context.Context, pid int32) error
	Kill(ctx context.Context, pid int32) error
	Running(ctx context.Context, pid int32) (bool, error)
}

// SystemSource reads the process table through gopsutil.
type SystemSource struct{}

func (SystemSource) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// exited or access denied
			continue
		}
		cmdline, _ := p.CmdlineSliceWithContext(ctx)
		created, _ := p.CreateTimeWithContext(ctx)
		out = append(out, Process{
			PID:        p.Pid,
			Name:       name,
			Cmdline:    cmdline,
			CreateTime: time.UnixMilli(created),
		})
	}
	return out, nil
}

func (SystemSource) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (SystemSource) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

func (SystemSource) Running(ctx context.Context, pid int32) (bool, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}
	return p.IsRunningWithContext(ctx)
}

type Manager struct {
	indicators []string
	source     Source
	grace      time.Duration
	logger     *logrus.Logger
}

type Option func(*Manager)

func WithSource(s Source) Option {
	return func(m *Manager) { m.source = s }
}

// WithGrace sets how long terminated processes get before being killed.
func WithGrace(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

func New(logger *logrus.Logger, opts ...Option) *Manager {
	m := &Manager{
		indicators: append([]string(nil), DefaultIndicators...),
		source:     SystemSource{},
		grace:      2 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithIndicators returns a copy of m using the given indicators.
func (m *Manager) WithIndicators(indicators ...string) *Manager {
	c := *m
	c.indicators = append([]string(nil), indicators...)
	return &c
}

func (m *Manager) Indicators() []string {
	return append([]string(nil), m.indicators...)
}

// Classify reports the kind of a process, or "" for unrelated processes.
func (m *Manager) Classify(name string, cmdline []string) Kind {
	lower := strings.ToLower(name)
	for _, d := range driverNames {
		if strings.Contains(lower, d) {
			return KindDriver
		}
	}
	for _, b := range browserNames {
		if strings.Contains(lower, b) {
			if m.isAutomation(cmdline) {
				return KindAutomation
			}
			return KindRegular
		}
	}
	return ""
}

func (m *Manager) isAutomation(cmdline []string) bool {
	if len(cmdline) == 0 {
		return false
	}
	joined := strings.Join(cmdline, " ")
	for _, ind := range m.indicators {
		if strings.Contains(joined, ind) {
			return true
		}
	}
	return false
}

func (m *Manager) Scan(ctx context.Context) (*Report, error) {
	procs, err := m.source.Processes(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, p := range procs {
		p.Kind = m.Classify(p.Name, p.Cmdline)
		switch p.Kind {
		case KindDriver:
			report.Drivers = append(report.Drivers, p)
		case KindAutomation:
			report.Automation = append(report.Automation, p)
		case KindRegular:
			report.Regular = append(report.Regular, p)
		}
	}
	return report, nil
}

func (m *Manager) logReport(prefix string, r *Report) {
	m.logger.Infof("%s: drivers=%d automation=%d regular=%d",
		prefix, len(r.Drivers), len(r.Automation), len(r.Regular))
	for _, p := range r.Stray() {
		m.logger.Debugf("  PID %d: %s (%s)", p.PID, p.Name, p.Kind)
	}
}

// TerminateStray terminates drivers then automation browsers, waits for the
// grace period and kills whatever is still running. Regular browser
// processes are never touched. It returns how many processes were stopped.
func (m *Manager) TerminateStray(ctx context.Context) (int, error) {
	report, err := m.Scan(ctx)
	if err != nil {
		return 0, err
	}
	m.logReport("Browser processes before cleanup", report)

	stray := report.Stray()
	if len(stray) == 0 {
		m.logger.Info("No stray automation processes found")
		return 0, nil
	}

	m.logger.Infof("Terminating %d driver and %d automation browser processes",
		len(report.Drivers), len(report.Automation))

	for _, p := range stray {
		if err := m.source.Terminate(ctx, p.PID); err != nil {
			m.logger.Debugf("Terminate PID %d failed: %v", p.PID, err)
			continue
		}
		m.logger.Infof("Terminated %s process: PID %d", p.Kind, p.PID)
	}

	if err := sleep(ctx, m.grace); err != nil {
		return 0, err
	}

	for _, p := range stray {
		running, err := m.source.Running(ctx, p.PID)
		if err != nil || !running {
			continue
		}
		if err := m.source.Kill(ctx, p.PID); err != nil {
			m.logger.Warnf("Kill PID %d failed: %v", p.PID, err)
			continue
		}
		m.logger.Infof("Force killed process: PID %d", p.PID)
	}

	if after, err := m.Scan(ctx); err == nil {
		m.logReport("Browser processes after cleanup", after)
	}
	return len(stray), nil
}

// LockFiles lists the files that mark a Chrome profile as in use.
func LockFiles(profileDir string) []string {
	return []string{
		filepath.Join(profileDir, "SingletonLock"),
		filepath.Join(filepath.Dir(profileDir), "SingletonLock"),
		filepath.Join(profileDir, "lockfile"),
		filepath.Join(profileDir, ".lock"),
	}
}

// WaitForProfileUnlock removes stale lock files from profileDir, retrying
// once per second until maxWait elapses. It reports whether the profile
// ended up unlocked.
func (m *Manager) WaitForProfileUnlock(ctx context.Context, profileDir string, maxWait time.Duration) (bool, error) {
	deadline := time.Now().Add(maxWait)
	for {
		locked := false
		for _, lock := range LockFiles(profileDir) {
			// SingletonLock is a dangling symlink, so Lstat.
			if _, err := os.Lstat(lock); err != nil {
				continue
			}
			if err := os.Remove(lock); err != nil {
				locked = true
				break
			}
			m.logger.Infof("Removed lock file: %s", lock)
		}
		if !locked {
			m.logger.Info("Profile directory is unlocked")
			return true, nil
		}
		if !time.Now().Before(deadline) {
			m.logger.Warnf("Profile directory still locked after %s", maxWait)
			return false, nil
		}
		m.logger.Info("Profile directory is locked, waiting...")
		if err := sleep(ctx, time.Second); err != nil {
			return false, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
