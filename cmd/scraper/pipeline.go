package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"facebook-group-scraper/internal/auth"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/export"
	"facebook-group-scraper/internal/human"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/pkg/types"
)

const profileUnlockWait = 10 * time.Second

// RunSummary totals one pass over the configured groups.
type RunSummary struct {
	Groups   int
	Failed   int
	Records  int
	Saved    int
	Exported []string
}

// resolveGroups picks groups from --group flags, the groups file or
// facebook.group_url, in that order.
func resolveGroups(flags GroupFlags, cfg *config.Config) ([]config.Group, error) {
	if len(flags.Group) > 0 {
		groups := make([]config.Group, 0, len(flags.Group))
		for _, g := range flags.Group {
			if strings.Contains(g, "/") {
				groups = append(groups, config.Group{URL: g, Name: scraper.GroupNameFromURL(g)})
			} else {
				groups = append(groups, config.Group{ID: g})
			}
		}
		return groups, nil
	}

	groups, err := config.LoadGroups(flags.GroupsFile)
	if err == nil && len(groups) > 0 {
		return groups, nil
	}
	if cfg.Facebook.GroupURL != "" {
		return []config.Group{{URL: cfg.Facebook.GroupURL, Name: scraper.GroupNameFromURL(cfg.Facebook.GroupURL)}}, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, errors.New("no groups configured")
}

func scraperOptions(cfg config.ScraperConfig) scraper.Options {
	opts := scraper.DefaultOptions()
	opts.ValidatePosts = cfg.ValidatePosts
	opts.Mode = scraper.Mode(cfg.Mode)
	opts.ScreenshotDir = cfg.ScreenshotDir
	opts.ExpandContent = cfg.ExpandContent
	opts.ScrollMin = cfg.ScrollMin
	opts.ScrollMax = cfg.ScrollMax
	opts.BacktrackProbability = cfg.BacktrackProbability
	return opts
}

func rateLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
}

func budget(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}

// cleanupProcesses stops stray automation browsers left by earlier runs and
// waits for the profile directory to be released.
func cleanupProcesses(deps *Dependencies) {
	cfg := deps.Config.Browser
	if !cfg.CleanupProcesses || deps.Procs == nil {
		return
	}
	n, err := deps.Procs.TerminateStray(deps.Ctx)
	if err != nil {
		deps.Logger.Warnf("Process cleanup failed: %v", err)
	} else if n > 0 {
		deps.Logger.Infof("Terminated %d stray browser processes", n)
	}
	if cfg.UserDataDir != "" {
		unlocked, err := deps.Procs.WaitForProfileUnlock(deps.Ctx, cfg.UserDataDir, profileUnlockWait)
		if err != nil {
			deps.Logger.Warnf("Profile unlock wait failed: %v", err)
		} else if !unlocked {
			deps.Logger.Warnf("Profile %s is still locked", cfg.UserDataDir)
		}
	}
}

// scrapeGroups runs one pass over groups through a single browser session.
// Per-group failures are logged and counted; only setup failures are
// returned as errors.
func scrapeGroups(deps *Dependencies, groups []config.Group, flags GroupFlags, exportFiles bool) (*RunSummary, error) {
	cfg := deps.Config
	logger := deps.Logger
	ctx := deps.Ctx

	cleanupProcesses(deps)

	session, err := deps.OpenBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer session.Close()

	behavior := human.New(session, human.FromConfig(cfg.Human), logger)
	defer behavior.LogStats()

	if err := auth.NewManager(session, behavior, cfg.Facebook, logger).Ensure(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	catalog, err := selectors.LoadOrDefault(cfg.Scraper.SelectorsFile)
	if err != nil {
		return nil, err
	}

	var h scraper.Human = behavior
	if !cfg.Human.Enabled {
		h = scraper.NewDirectHuman(session)
	}

	options := []scraper.GroupOption{
		scraper.WithFilter(&cfg.Scraper.Filter),
		scraper.WithRateLimiter(rateLimiter(cfg.Facebook.RateLimit)),
	}
	if cfg.Scraper.DebugHTMLDir != "" {
		options = append(options, scraper.WithPageDumps(cfg.Scraper.DebugHTMLDir))
	}
	gs := scraper.NewGroupScraper(session, h, catalog, scraperOptions(cfg.Scraper), logger, options...)

	target := budget(flags.Target, cfg.Scraper.MaxPosts)
	maxScrolls := budget(flags.MaxScrolls, cfg.Scraper.MaxScrolls)

	summary := &RunSummary{}
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		summary.Groups++

		name := group.Name
		if name == "" {
			name = scraper.GroupNameFromURL(group.GroupURL())
		}
		logger.Infof("Scraping group: %s (%s)", name, group.GroupURL())

		res, err := gs.Scrape(ctx, group.GroupURL(), target, maxScrolls)
		saved, files := persist(deps, name, res, exportFiles)
		if deps.Monitor != nil {
			deps.Monitor.RecordRun(name, res, saved, err)
		}

		if err != nil {
			summary.Failed++
			logger.Errorf("Failed to scrape group %s: %v", name, err)
		}
		if res != nil {
			summary.Records += len(res.Records)
		}
		summary.Saved += saved
		summary.Exported = append(summary.Exported, files...)
	}

	logger.Infof("Scraping completed: %d groups, %d failed, %d records, %d new in database",
		summary.Groups, summary.Failed, summary.Records, summary.Saved)
	return summary, nil
}

// persist stores and exports a run's records. It returns the number of new
// rows and the written export files.
func persist(deps *Dependencies, groupName string, res *scraper.Result, exportFiles bool) (int, []string) {
	if res == nil || len(res.Records) == 0 {
		return 0, nil
	}
	for i := range res.Records {
		if res.Records[i].GroupName == types.UnknownGroup && groupName != "" {
			res.Records[i].GroupName = groupName
		}
	}

	saved := 0
	if deps.DB != nil {
		// records already collected are kept even if the run was cancelled
		n, err := deps.DB.SavePosts(context.WithoutCancel(deps.Ctx), res.Records)
		if err != nil {
			deps.Logger.Errorf("Failed to save posts for %s: %v", groupName, err)
		}
		saved = n
	}

	if !exportFiles {
		return saved, nil
	}
	cfg := deps.Config.Export
	files, err := export.Write(res.Records, cfg.Dir, cfg.Format, "facebook_posts_"+slug(groupName), deps.now())
	if err != nil {
		deps.Logger.Errorf("Failed to export posts for %s: %v", groupName, err)
	}
	for _, f := range files {
		deps.Logger.Infof("Exported %d posts to %s", len(res.Records), f)
	}
	return saved, files
}

func slug(name string) string {
	s := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	if s == "" {
		return "group"
	}
	return s
}
