package scraper_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/scraper"
	"facebook-group-scraper/internal/snapshot"
)

func TestExtractGenuinePost(t *testing.T) {
	b := newSnapshot(t, []string{page(post("1001", "Alice Smith", helloContent))})
	el := queryOne(t, b, "div[role='article']")

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), el)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "1001", p.PostID)
	require.NotNil(t, p.Author)
	assert.Equal(t, "Alice Smith", *p.Author)
	require.NotNil(t, p.Content)
	assert.Equal(t, helloContent, *p.Content)
	assert.Equal(t, "2 hours ago", p.Timestamp)
	assert.Equal(t, "https://www.facebook.com/groups/test-group/permalink/1001/", p.PostURL)
	assert.Equal(t, 12, p.LikesCount)
	assert.Equal(t, 3, p.CommentsCount)
	assert.Equal(t, 0, p.SharesCount)
	assert.Empty(t, p.Images)
}

func TestExtractRejectsChromeContent(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"too short", "Hi there"},
		{"chrome labels", "Like · Comment · Share"},
		{"see more", "See more"},
		{"status", "Alice is typing..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newSnapshot(t, []string{page(post("1", "Alice Smith", tt.message))})
			p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Nil(t, p.Content)
			assert.NotNil(t, p.Author)
		})
	}
}

func TestExtractPrefersLongestContent(t *testing.T) {
	b := newSnapshot(t, []string{page(`<div role="article">
  <h3><a href="/profile/bob">Bob</a></h3>
  <div data-ad-preview="message">Short but valid text</div>
  <div data-ad-preview="message">This candidate is clearly the longest one here</div>
  <div data-ad-preview="message">See more</div>
</div>`)})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	require.NotNil(t, p.Content)
	assert.Equal(t, "This candidate is clearly the longest one here", *p.Content)
}

func TestExtractClicksSeeMoreOnce(t *testing.T) {
	b := newSnapshot(t, []string{page(post("7", "Alice Smith", helloContent,
		`<div role="button">See more</div>`,
		`<div role="button">See more</div>`,
	))})

	_, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Len(t, b.Clicks(), 1)
}

func TestExtractSkipsExpandWhenDisabled(t *testing.T) {
	b := newSnapshot(t, []string{page(post("7", "Alice Smith", helloContent, `<div role="button">See more</div>`))})
	opts := testOptions()
	opts.ExpandContent = false

	_, err := newExtractor(b, opts).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Empty(t, b.Clicks())
}

func TestExtractSynthesizesPostID(t *testing.T) {
	b := newSnapshot(t, []string{page(`<div role="article">
  <h3><a href="/profile/bob">Bob Jones</a></h3>
  <abbr title="Yesterday">1d</abbr>
  <div data-ad-preview="message">` + helloContent + `</div>
</div>`)})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Regexp(t, `^post_\d+_[0-9a-f]{16}$`, p.PostID)
	assert.Equal(t, "Yesterday", p.Timestamp)
	assert.Empty(t, p.PostURL)
}

func TestExtractReturnsNilWithoutIdentity(t *testing.T) {
	b := newSnapshot(t, []string{page(`<div role="article"><span>ok</span></div>`)})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExtractPostIDFromDataFT(t *testing.T) {
	b := newSnapshot(t, []string{page(`<div role="article">
  <h3><a href="/profile/bob">Bob Jones</a></h3>
  <div data-ft='{"top_level_post_id":"555123","tn":"K"}'></div>
</div>`)})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Equal(t, "555123", p.PostID)
}

func TestExtractCountFromAriaLabel(t *testing.T) {
	b := newSnapshot(t, []string{page(`<div role="article">
  <h3><a href="/profile/bob">Bob Jones</a></h3>
  <div data-ad-preview="message">` + helloContent + `</div>
  <span data-testid="like_count" aria-label="1,204 reactions"></span>
  <span data-testid="share_count">1.2K shares</span>
</div>`)})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	assert.Equal(t, 1204, p.LikesCount)
	assert.Equal(t, 0, p.SharesCount)
}

func TestExtractImagesDeduplicated(t *testing.T) {
	b := newSnapshot(t, []string{page(post("9", "Alice Smith", helloContent,
		`<img src="https://scontent.example.net/a.jpg" alt="first" title="t" class="photo">`,
		`<img src="https://scontent.example.net/a.jpg" alt="again">`,
		`<img src="https://scontent.example.net/b.jpg">`,
	))})

	p, err := newExtractor(b, testOptions()).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.NoError(t, err)
	require.Len(t, p.Images, 2)
	assert.Equal(t, "https://scontent.example.net/a.jpg", p.Images[0].Src)
	assert.Equal(t, "first", p.Images[0].Alt)
	assert.Equal(t, "t", p.Images[0].Title)
	assert.Equal(t, "photo", p.Images[0].SourceClass)
	assert.Equal(t, "https://scontent.example.net/b.jpg", p.Images[1].Src)
}

func TestExtractScreenshotMode(t *testing.T) {
	var captured string
	b := newSnapshot(t, []string{page(`<div role="article"><span>no text at all</span></div>`)},
		snapshot.WithCapture(func(_ context.Context, key, _ string) ([]byte, error) {
			captured = key
			return []byte("png-bytes"), nil
		}))
	opts := testOptions()
	opts.Mode = scraper.ModeScreenshot
	opts.ScreenshotDir = t.TempDir()

	el := queryOne(t, b, "div[role='article']")
	p, err := newExtractor(b, opts).Extract(context.Background(), el)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, el.Key(), captured)
	assert.Nil(t, p.Author)

	data, err := os.ReadFile(p.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestExtractScreenshotFailureSkips(t *testing.T) {
	for name, fn := range map[string]snapshot.CaptureFunc{
		"error": func(context.Context, string, string) ([]byte, error) { return nil, errors.New("boom") },
		"empty": func(context.Context, string, string) ([]byte, error) { return nil, nil },
	} {
		t.Run(name, func(t *testing.T) {
			b := newSnapshot(t, []string{page(post("1", "Alice Smith", helloContent))}, snapshot.WithCapture(fn))
			opts := testOptions()
			opts.Mode = scraper.ModeScreenshot
			opts.ScreenshotDir = t.TempDir()

			p, err := newExtractor(b, opts).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

type failingText struct {
	*snapshot.Browser
}

func (failingText) Text(context.Context, dom.Element) (string, error) {
	return "", errors.New("node detached")
}

func TestExtractScreenshotNotWrittenOnError(t *testing.T) {
	captures := 0
	snap := newSnapshot(t, []string{page(post("1", "Alice Smith", helloContent))},
		snapshot.WithCapture(func(context.Context, string, string) ([]byte, error) {
			captures++
			return []byte("png-bytes"), nil
		}))
	b := failingText{snap}
	opts := testOptions()
	opts.Mode = scraper.ModeScreenshot
	opts.ScreenshotDir = t.TempDir()

	p, err := newExtractor(b, opts).Extract(context.Background(), queryOne(t, b, "div[role='article']"))
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Zero(t, captures)

	entries, err := os.ReadDir(opts.ScreenshotDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSynthesizePostIDIsStable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := scraper.SynthesizePostID(now, "html[0]/body[1]/div[0]")
	assert.Equal(t, a, scraper.SynthesizePostID(now, "html[0]/body[1]/div[0]"))
	assert.NotEqual(t, a, scraper.SynthesizePostID(now, "html[0]/body[1]/div[1]"))
	assert.Regexp(t, `^post_1700000000_[0-9a-f]{16}$`, a)
}
