package main

import (
	"fmt"

	"facebook-group-scraper/internal/export"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/pkg/types"
)

// Run writes stored posts to export files.
func (c *ExportCmd) Run(deps *Dependencies) error {
	var (
		posts []types.Post
		err   error
	)
	switch {
	case c.Group != "":
		posts, err = deps.DB.GetPostsByGroup(deps.Ctx, c.Group, c.Limit)
	case c.MinLikes > 0:
		posts, err = deps.DB.GetPostsWithMinLikes(deps.Ctx, c.MinLikes, c.Limit)
	default:
		posts, err = deps.DB.GetPosts(deps.Ctx, c.Limit, 0)
	}
	if err != nil {
		return err
	}
	if c.DaysBack > 0 {
		posts, _ = scraper.BatchFilter(posts, &types.PostFilter{DaysBack: c.DaysBack})
	}

	format := c.Format
	if format == "" {
		format = deps.Config.Export.Format
	}
	dir := c.Dir
	if dir == "" {
		dir = deps.Config.Export.Dir
	}

	prefix := "facebook_posts"
	if c.Group != "" {
		prefix += "_" + slug(c.Group)
	}
	files, err := export.Write(posts, dir, format, prefix, deps.now())
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Exported %d posts\n", len(posts))
	for _, f := range files {
		fmt.Fprintf(deps.Stdout, "  %s\n", f)
	}
	return nil
}
