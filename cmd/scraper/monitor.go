package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facebook-group-scraper/internal/api"
	"facebook-group-scraper/internal/monitoring"
	"facebook-group-scraper/internal/scheduler"
)

// Run scrapes on a fixed interval until the context is cancelled. The first
// pass starts immediately.
func (c *MonitorCmd) Run(deps *Dependencies) error {
	groups, err := resolveGroups(c.GroupFlags, deps.Config)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	interval := budget(c.Interval, deps.Config.Monitor.IntervalMinutes)
	logger := deps.Logger
	alerts := monitoring.NewAlertManager(deps.Monitor, logger)

	// each pass must finish before the next tick is due
	sched := scheduler.New(logger, time.Duration(interval)*time.Minute)
	job := func(ctx context.Context) error {
		pass := *deps
		pass.Ctx = ctx
		summary, err := scrapeGroups(&pass, groups, c.GroupFlags, true)
		if err != nil {
			deps.Monitor.RecordRun("all", nil, 0, err)
		} else {
			logger.Infof("Monitor pass: %d records, %d new", summary.Records, summary.Saved)
		}
		alerts.SendAlerts(alerts.CheckAlerts())
		return err
	}
	if err := sched.AddIntervalJob("scrape", interval, job); err != nil {
		return err
	}

	if c.API {
		server := api.NewServer(deps.DB, deps.Monitor, logger, deps.Config.API.Port)
		go func() {
			if err := server.Start(deps.Ctx); err != nil {
				logger.Errorf("API server stopped: %v", err)
			}
		}()
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-deps.Ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warnf("Scheduler did not stop cleanly: %v", err)
		}
	}()

	fmt.Fprintf(deps.Stdout, "Monitoring %d groups every %d minutes\n", len(groups), interval)
	sched.Start()
	if err := sched.RunNow("scrape", job); err != nil && !errors.Is(err, scheduler.ErrJobRunning) {
		logger.Errorf("Initial pass failed: %v", err)
	}

	<-stopped
	fmt.Fprintln(deps.Stdout, deps.Monitor.GenerateReport())
	return nil
}
