package scraper_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/internal/snapshot"
	"facebook-group-scraper/pkg/types"
)

func TestGroupScraperRejectsInvalidURL(t *testing.T) {
	b := newSnapshot(t, []string{page()})
	g := scraper.NewGroupScraper(b, scraper.NewDirectHuman(b), selectors.Default(), testOptions(), quietLogger())

	_, err := g.Scrape(context.Background(), "https://example.com/not-a-group", 5, 1)
	assert.Error(t, err)
}

func TestGroupScraperScrapesAndFilters(t *testing.T) {
	b := newSnapshot(t, []string{page(
		post("1", "Alice Smith", helloContent),
		`<div role="article">
  <h3><a href="/profile/bob">Bob Jones</a></h3>
  <a href="/groups/cooks/permalink/2/">1h</a>
  <div data-ad-preview="message">Anyone selling a second hand stove?</div>
  <span data-testid="like_count">1 like</span>
</div>`,
	)})
	g := scraper.NewGroupScraper(b, scraper.NewDirectHuman(b), selectors.Default(), testOptions(), quietLogger(),
		scraper.WithFilter(&types.PostFilter{MinLikes: 10}),
		scraper.WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
	)

	res, err := g.Scrape(context.Background(), "https://www.facebook.com/groups/home-cooks", 5, 0)
	require.NoError(t, err)

	url, _ := b.CurrentURL(context.Background())
	assert.Equal(t, "https://www.facebook.com/groups/home-cooks", url)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "1", res.Records[0].PostID)
	assert.Equal(t, "Home Cooks", res.Records[0].GroupName)
	require.NotNil(t, res.FilterStats)
	assert.Equal(t, 2, res.FilterStats.TotalPosts)
	assert.Equal(t, 1, res.FilterStats.LikesFiltered)
}

func TestGroupScraperSetCatalog(t *testing.T) {
	b := newSnapshot(t, []string{page()})
	g := scraper.NewGroupScraper(b, scraper.NewDirectHuman(b), selectors.Default(), testOptions(), quietLogger())

	next, err := selectors.Default().WithVersion("custom-1")
	require.NoError(t, err)
	g.SetCatalog(next)
	assert.Equal(t, "custom-1", g.Catalog().Version())
}

func TestGroupScraperDumpsPage(t *testing.T) {
	dir := t.TempDir()
	b := newSnapshot(t, []string{page(post("1", "Alice Smith", helloContent))})
	g := scraper.NewGroupScraper(b, scraper.NewDirectHuman(b), selectors.Default(), testOptions(), quietLogger(),
		scraper.WithPageDumps(dir),
	)

	_, err := g.Scrape(context.Background(), "https://www.facebook.com/groups/home-cooks", 1, 0)
	require.NoError(t, err)

	dumps, err := filepath.Glob(filepath.Join(dir, "home_cooks_*.html"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)

	replayed, err := snapshot.FromFiles(dumps)
	require.NoError(t, err)
	res, err := scraper.NewCollector(replayed, selectors.Default(), scraper.NewDirectHuman(replayed), testOptions(), quietLogger()).
		Collect(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "1", res.Records[0].PostID)
}
