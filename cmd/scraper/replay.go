package main

import (
	"fmt"
	"sort"

	"facebook-group-scraper/internal/export"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/internal/snapshot"
)

// Run collects posts from saved pages. Each scroll advances to the next page.
func (c *ReplayCmd) Run(deps *Dependencies) error {
	cfg := deps.Config

	options := scraperOptions(cfg.Scraper)
	options.Mode = scraper.ModeData

	// every forward scroll reveals the next saved page
	opts := []snapshot.Option{snapshot.WithPageHeight(options.ScrollMin)}
	if c.URL != "" {
		opts = append(opts, snapshot.WithURL(c.URL))
	}
	b, err := snapshot.FromFiles(c.Files, opts...)
	if err != nil {
		return err
	}

	catalog, err := selectors.LoadOrDefault(cfg.Scraper.SelectorsFile)
	if err != nil {
		return err
	}

	gs := scraper.NewGroupScraper(b, scraper.NewDirectHuman(b), catalog, options, deps.Logger,
		scraper.WithFilter(&cfg.Scraper.Filter),
	)

	maxScrolls := budget(c.MaxScrolls, len(c.Files)-1)
	res, err := gs.CollectCurrent(deps.Ctx, budget(c.Target, cfg.Scraper.MaxPosts), maxScrolls)
	if res == nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Replayed %d pages: %d candidates, %d records, %d rejected, %d failed (%s)\n",
		len(c.Files), res.Candidates, len(res.Records), res.Rejected(), res.Failures, res.Outcome)
	reasons := make([]string, 0, len(res.Rejections))
	for reason := range res.Rejections {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(deps.Stdout, "  rejected %-24s %d\n", reason, res.Rejections[scraper.RejectReason(reason)])
	}

	if c.Output != "" {
		if err := export.WriteJSON(res.Records, c.Output); err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "Wrote %s\n", c.Output)
	}

	if c.Save && deps.DB != nil {
		n, err := deps.DB.SavePosts(deps.Ctx, res.Records)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "Saved %d new posts\n", n)
	}
	return err
}
