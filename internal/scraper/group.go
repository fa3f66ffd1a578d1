package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/pkg/types"
)

// GroupScraper navigates to group pages and runs the collector on them.
type GroupScraper struct {
	browser dom.Browser
	human   Human
	catalog *selectors.Catalog
	opts    Options
	filter  *types.PostFilter
	limiter *rate.Limiter
	logger  *logrus.Logger
	dumpDir string

	collectorOptions []CollectorOption
}

type GroupOption func(*GroupScraper)

// WithFilter drops collected posts that do not pass filter.
func WithFilter(filter *types.PostFilter) GroupOption {
	return func(g *GroupScraper) { g.filter = filter }
}

// WithRateLimiter paces group navigations.
func WithRateLimiter(l *rate.Limiter) GroupOption {
	return func(g *GroupScraper) { g.limiter = l }
}

// WithPageDumps writes the page HTML under dir after every scrape so the
// run can be replayed offline.
func WithPageDumps(dir string) GroupOption {
	return func(g *GroupScraper) { g.dumpDir = dir }
}

func WithCollectorOptions(opts ...CollectorOption) GroupOption {
	return func(g *GroupScraper) { g.collectorOptions = append(g.collectorOptions, opts...) }
}

func NewGroupScraper(b dom.Browser, human Human, catalog *selectors.Catalog, opts Options, logger *logrus.Logger, options ...GroupOption) *GroupScraper {
	g := &GroupScraper{
		browser: b,
		human:   human,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// SetCatalog swaps the selector catalog used by subsequent scrapes.
func (g *GroupScraper) SetCatalog(c *selectors.Catalog) {
	g.catalog = c
}

func (g *GroupScraper) Catalog() *selectors.Catalog {
	return g.catalog
}

// Scrape loads groupURL and collects up to target posts.
func (g *GroupScraper) Scrape(ctx context.Context, groupURL string, target, maxScrolls int) (*Result, error) {
	if !ValidGroupURL(groupURL) {
		return nil, fmt.Errorf("invalid Facebook group URL: %s", groupURL)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	g.logger.Infof("Scraping posts from group: %s (catalog %s)", groupURL, g.catalog.Version())
	if err := g.navigate(ctx, groupURL); err != nil {
		return nil, fmt.Errorf("failed to navigate to group: %w", err)
	}

	res, err := g.CollectCurrent(ctx, target, maxScrolls)
	if g.dumpDir != "" && ctx.Err() == nil {
		if path, dumpErr := DumpPage(ctx, g.browser, g.dumpDir, GroupNameFromURL(groupURL), time.Now()); dumpErr != nil {
			g.logger.Warnf("Failed to save page HTML: %v", dumpErr)
		} else {
			g.logger.Debugf("Saved page HTML to %s", path)
		}
	}
	return res, err
}

// DumpPage writes the current document to dir and returns the file path.
func DumpPage(ctx context.Context, b dom.Browser, dir, name string, now time.Time) (string, error) {
	src, ok := b.(dom.PageSourcer)
	if !ok {
		return "", dom.ErrUnsupported
	}
	html, err := src.PageHTML(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}
	slug := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	if slug == "" {
		slug = "page"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.html", slug, now.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// CollectCurrent runs the collector on whatever page is loaded.
func (g *GroupScraper) CollectCurrent(ctx context.Context, target, maxScrolls int) (*Result, error) {
	collector := NewCollector(g.browser, g.catalog, g.human, g.opts, g.logger, g.collectorOptions...)
	res, err := collector.Collect(ctx, target, maxScrolls)
	if res == nil {
		return nil, err
	}

	if g.filter != nil && !g.filter.IsZero() {
		filtered, stats := BatchFilter(res.Records, g.filter)
		res.Records = filtered
		res.FilterStats = &stats
		g.logger.Infof("Filter applied: %s", stats)
	}

	g.logger.Infof("Run %s: %d candidates, %d accepted, %d rejected, %d failed",
		res.RunID, res.Candidates, len(res.Records), res.Rejected(), res.Failures)
	return res, err
}

func (g *GroupScraper) navigate(ctx context.Context, url string) error {
	if nav, ok := g.human.(Navigator); ok {
		return nav.Navigate(ctx, url)
	}
	return g.browser.Navigate(ctx, url)
}
