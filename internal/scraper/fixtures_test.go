package scraper_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/internal/snapshot"
)

const groupURL = "https://www.facebook.com/groups/test-group"

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// post renders a feed item that passes every classifier gate.
func post(id, author, content string, extra ...string) string {
	return fmt.Sprintf(`<div role="article" class="feed-item">
  <h3><a href="/profile/%[2]s">%[2]s</a></h3>
  <a href="https://www.facebook.com/groups/test-group/permalink/%[1]s/" title="2 hours ago">2h</a>
  <div data-ad-preview="message">%[3]s</div>
  <span data-testid="like_count">12 likes</span>
  <span data-testid="comment_count">3 comments</span>
  %[4]s
</div>`, id, author, content, strings.Join(extra, "\n"))
}

func page(items ...string) string {
	return `<html><head><title>Group</title></head><body><div role="feed">` +
		strings.Join(items, "\n") + `</div></body></html>`
}

func newSnapshot(t *testing.T, pages []string, opts ...snapshot.Option) *snapshot.Browser {
	t.Helper()
	b, err := snapshot.FromHTML(pages, append([]snapshot.Option{snapshot.WithURL(groupURL)}, opts...)...)
	require.NoError(t, err)
	return b
}

func queryOne(t *testing.T, b dom.Browser, selector string) dom.Element {
	t.Helper()
	els, err := b.QueryAll(context.Background(), selector, nil)
	require.NoError(t, err)
	require.NotEmpty(t, els, "no element for %s", selector)
	return els[0]
}

func testOptions() scraper.Options {
	opts := scraper.DefaultOptions()
	opts.ExpandPauseMin, opts.ExpandPauseMax = 0, 0
	opts.BacktrackPauseMin, opts.BacktrackPauseMax = 0, 0
	return opts
}

func newExtractor(b dom.Browser, opts scraper.Options) *scraper.Extractor {
	return scraper.NewExtractor(b, selectors.Default(), scraper.NewDirectHuman(b), opts, quietLogger())
}
