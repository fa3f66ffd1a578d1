package main

import "fmt"

// Run prints database statistics.
func (c *StatsCmd) Run(deps *Dependencies) error {
	stats, err := deps.DB.GetStats(deps.Ctx, c.Threshold)
	if err != nil {
		return err
	}

	out := deps.Stdout
	fmt.Fprintln(out, "Database Statistics:")
	fmt.Fprintf(out, "- Total Posts: %d\n", stats.TotalPosts)
	fmt.Fprintf(out, "- High Engagement Posts: %d\n", stats.HighEngagementPosts)
	fmt.Fprintf(out, "- Average Likes: %.2f\n", stats.AverageLikes)
	fmt.Fprintf(out, "- Total Comments: %d\n", stats.TotalComments)
	fmt.Fprintf(out, "- Total Shares: %d\n", stats.TotalShares)
	fmt.Fprintf(out, "- Groups Scraped: %d\n", stats.GroupsScraped)
	fmt.Fprintf(out, "- Top Group: %s\n", stats.TopGroup)
	fmt.Fprintf(out, "- Last Scraped: %s\n", stats.LastScrapedAt)

	groups, err := deps.DB.GetGroupCounts(deps.Ctx)
	if err != nil {
		return err
	}
	if len(groups) > 0 {
		fmt.Fprintln(out, "\nPosts by Group:")
		for _, g := range groups {
			fmt.Fprintf(out, "- %s: %d\n", g.GroupName, g.Posts)
		}
	}

	authors, err := deps.DB.GetTopAuthors(deps.Ctx, c.Authors)
	if err != nil {
		return err
	}
	if len(authors) > 0 {
		fmt.Fprintln(out, "\nTop Authors:")
		for _, a := range authors {
			fmt.Fprintf(out, "- %s: %d posts, %.1f avg likes\n", a.Author, a.PostCount, a.AvgLikes)
		}
	}

	if c.Report && deps.Monitor != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, deps.Monitor.GenerateReport())
	}
	return nil
}
