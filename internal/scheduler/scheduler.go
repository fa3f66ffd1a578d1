package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrJobRunning is returned by RunNow when the named job is already running.
var ErrJobRunning = errors.New("job already running")

// Job is one scheduled unit of work. ctx is cancelled on Stop or when the
// job exceeds its timeout.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules. A job that is still running
// when its next tick fires, or when RunNow is called, is skipped rather
// than overlapped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	running map[string]*sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// New creates a scheduler whose jobs are each bounded by timeout. A zero
// timeout leaves jobs unbounded.
func New(logger *logrus.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))
	return &Scheduler{
		cron:    c,
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]cron.EntryID),
		running: make(map[string]*sync.Mutex),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob registers job under name. schedule uses standard cron syntax or
// descriptors such as "@every 30m".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Infof("Scheduled job %s (%s)", name, schedule)
	return nil
}

// AddIntervalJob schedules job every interval minutes.
func (s *Scheduler) AddIntervalJob(name string, minutes int, job Job) error {
	if minutes <= 0 {
		return fmt.Errorf("invalid interval for job %s: %d minutes", name, minutes)
	}
	return s.AddJob(name, fmt.Sprintf("@every %dm", minutes), job)
}

func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Infof("Removed job %s", name)
	}
}

// RunNow executes job synchronously under the scheduler's context. It
// returns ErrJobRunning if a scheduled run of name is in progress.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.execute(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	err := s.execute(name, job)
	switch {
	case errors.Is(err, ErrJobRunning):
		s.logger.Infof("Skipping job %s: previous run still in progress", name)
	case err != nil:
		s.logger.Errorf("Job %s failed: %v", name, err)
	}
}

func (s *Scheduler) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.running[name]
	if !ok {
		l = &sync.Mutex{}
		s.running[name] = l
	}
	return l
}

func (s *Scheduler) execute(name string, job Job) error {
	l := s.lockFor(name)
	if !l.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer l.Unlock()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Infof("Starting job %s", name)
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Infof("Job %s completed in %v", name, time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
