package main

import "fmt"

// Run executes the scrape command.
func (c *ScrapeCmd) Run(deps *Dependencies) error {
	groups, err := resolveGroups(c.GroupFlags, deps.Config)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	summary, err := scrapeGroups(deps, groups, c.GroupFlags, !c.NoExport)
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Scraped %d groups: %d records, %d new in database, %d failed\n",
		summary.Groups, summary.Records, summary.Saved, summary.Failed)
	for _, f := range summary.Exported {
		fmt.Fprintf(deps.Stdout, "  %s\n", f)
	}
	if deps.Ctx.Err() != nil {
		return deps.Ctx.Err()
	}
	if summary.Groups > 0 && summary.Failed == summary.Groups {
		return fmt.Errorf("all %d groups failed", summary.Failed)
	}
	return nil
}
