package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/pkg/types"
)

type Mode string

const (
	ModeData       Mode = "data"
	ModeScreenshot Mode = "screenshot"
)

var ErrCaptureEmpty = errors.New("browser returned an empty capture")

var (
	hrefIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/permalink/(\d+)`),
		regexp.MustCompile(`/posts/(\d+)`),
		regexp.MustCompile(`story_fbid=(\d+)`),
		regexp.MustCompile(`/story/(\d+)`),
	}
	dataFTIDPattern = regexp.MustCompile(`"(?:top_level_)?post_id"\s*:\s*"?(\d+)`)
)

// Extractor turns an accepted container into a record.
type Extractor struct {
	browser dom.Browser
	catalog *selectors.Catalog
	human   Human
	opts    Options
	now     func() time.Time
	logger  *logrus.Logger
}

func NewExtractor(b dom.Browser, catalog *selectors.Catalog, human Human, opts Options, logger *logrus.Logger) *Extractor {
	return &Extractor{
		browser: b,
		catalog: catalog,
		human:   human,
		opts:    opts,
		now:     time.Now,
		logger:  logger,
	}
}

// Extract returns nil without error when the container should be skipped:
// nothing identifying was found in data mode, or the capture failed in
// screenshot mode. The screenshot is taken last, once every field is read.
func (e *Extractor) Extract(ctx context.Context, el dom.Element) (*types.Post, error) {
	if e.opts.ExpandContent {
		e.expand(ctx, el)
	}

	postID, resolved, err := e.postID(ctx, el)
	if err != nil {
		return nil, err
	}
	author, err := e.author(ctx, el)
	if err != nil {
		return nil, err
	}
	content, err := e.content(ctx, el)
	if err != nil {
		return nil, err
	}

	if e.opts.Mode != ModeScreenshot && author == nil && content == nil && !resolved {
		e.logger.Debugf("Skipping container %s: no author, content or post id", el.Key())
		return nil, nil
	}

	timestamp, err := e.timestamp(ctx, el)
	if err != nil {
		return nil, err
	}
	permalink, err := e.permalink(ctx, el)
	if err != nil {
		return nil, err
	}
	likes, err := e.count(ctx, el, selectors.FieldLikes)
	if err != nil {
		return nil, err
	}
	comments, err := e.count(ctx, el, selectors.FieldComments)
	if err != nil {
		return nil, err
	}
	shares, err := e.count(ctx, el, selectors.FieldShares)
	if err != nil {
		return nil, err
	}
	images, err := e.images(ctx, el)
	if err != nil {
		return nil, err
	}

	var screenshot string
	if e.opts.Mode == ModeScreenshot {
		path, err := e.capture(ctx, el)
		if err != nil {
			e.logger.Warnf("Skipping container %s: capture failed: %v", el.Key(), err)
			return nil, nil
		}
		screenshot = path
	}

	return &types.Post{
		PostID:         postID,
		Author:         author,
		Content:        content,
		Timestamp:      timestamp,
		PostURL:        permalink,
		LikesCount:     likes,
		CommentsCount:  comments,
		SharesCount:    shares,
		Images:         images,
		ScreenshotPath: screenshot,
	}, nil
}

// expand clicks the first "see more" control once. Failures only cost the
// truncated text, so they are logged and ignored.
func (e *Extractor) expand(ctx context.Context, el dom.Element) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldExpandButton, el)
	if err != nil || !ok {
		if err != nil {
			e.logger.Debugf("Expand lookup failed for %s: %v", el.Key(), err)
		}
		return
	}
	if err := e.human.Click(ctx, m.First()); err != nil {
		e.logger.Debugf("Expand click failed for %s: %v", el.Key(), err)
		return
	}
	if err := e.human.Pause(ctx, e.opts.ExpandPauseMin, e.opts.ExpandPauseMax); err != nil {
		e.logger.Debugf("Expand pause interrupted: %v", err)
	}
}

func (e *Extractor) postID(ctx context.Context, el dom.Element) (string, bool, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldPostID, el)
	if err != nil {
		return "", false, err
	}
	if ok {
		id, err := e.idFromElement(ctx, m.First())
		if err != nil {
			return "", false, err
		}
		if id != "" {
			return id, true, nil
		}
	}

	m, ok, err = e.catalog.Resolve(ctx, e.browser, selectors.FieldPermalink, el)
	if err != nil {
		return "", false, err
	}
	if ok {
		href, _, err := e.browser.Attribute(ctx, m.First(), "href")
		if err != nil {
			return "", false, err
		}
		if id := idFromHref(href); id != "" {
			return id, true, nil
		}
	}

	return SynthesizePostID(e.now(), el.Key()), false, nil
}

func (e *Extractor) idFromElement(ctx context.Context, el dom.Element) (string, error) {
	href, ok, err := e.browser.Attribute(ctx, el, "href")
	if err != nil {
		return "", err
	}
	if ok {
		return idFromHref(href), nil
	}

	ft, ok, err := e.browser.Attribute(ctx, el, "data-ft")
	if err != nil {
		return "", err
	}
	if ok && ft != "" {
		if m := dataFTIDPattern.FindStringSubmatch(ft); m != nil {
			return m[1], nil
		}
		return ft, nil
	}

	text, err := e.browser.Text(ctx, el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func idFromHref(href string) string {
	for _, re := range hrefIDPatterns {
		if m := re.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return ""
}

// SynthesizePostID builds a fallback id from the extraction time and the
// element identity.
func SynthesizePostID(now time.Time, elementKey string) string {
	return fmt.Sprintf("post_%d_%016x", now.Unix(), xxhash.Sum64String(elementKey))
}

func (e *Extractor) author(ctx context.Context, el dom.Element) (*string, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldAuthor, el)
	if err != nil || !ok {
		return nil, err
	}
	for _, candidate := range m.Elements {
		text, err := e.browser.Text(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if validAuthor(text) {
			return types.StringPtr(strings.TrimSpace(text)), nil
		}
	}
	return nil, nil
}

func (e *Extractor) content(ctx context.Context, el dom.Element) (*string, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldPostMessage, el)
	if err != nil || !ok {
		return nil, err
	}
	texts := make([]string, 0, len(m.Elements))
	for _, candidate := range m.Elements {
		text, err := e.browser.Text(ctx, candidate)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	best, ok := BestContent(texts)
	if !ok {
		return nil, nil
	}
	return types.StringPtr(best), nil
}

func (e *Extractor) timestamp(ctx context.Context, el dom.Element) (string, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldTimestamp, el)
	if err != nil || !ok {
		return "", err
	}
	first := m.First()
	if title, _, err := e.browser.Attribute(ctx, first, "title"); err != nil {
		return "", err
	} else if strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}
	text, err := e.browser.Text(ctx, first)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) permalink(ctx context.Context, el dom.Element) (string, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldPermalink, el)
	if err != nil || !ok {
		return "", err
	}
	href, _, err := e.browser.Attribute(ctx, m.First(), "href")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(href), nil
}

func (e *Extractor) count(ctx context.Context, el dom.Element, field selectors.Field) (int, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, field, el)
	if err != nil || !ok {
		return 0, err
	}
	first := m.First()
	text, err := e.browser.Text(ctx, first)
	if err != nil {
		return 0, err
	}
	if !hasDigit(text) {
		label, _, err := e.browser.Attribute(ctx, first, "aria-label")
		if err != nil {
			return 0, err
		}
		text = label
	}
	return ParseCount(text), nil
}

func (e *Extractor) images(ctx context.Context, el dom.Element) ([]types.Image, error) {
	m, ok, err := e.catalog.Resolve(ctx, e.browser, selectors.FieldImages, el)
	if err != nil || !ok {
		return nil, err
	}

	seen := make(map[string]struct{})
	var images []types.Image
	for _, img := range m.Elements {
		src, err := e.attr(ctx, img, "src")
		if err != nil {
			return nil, err
		}
		if src == "" {
			if src, err = e.attr(ctx, img, "data-src"); err != nil {
				return nil, err
			}
		}
		if !isValidImageURL(src) {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}

		image := types.Image{Src: src}
		if image.Alt, err = e.attr(ctx, img, "alt"); err != nil {
			return nil, err
		}
		if image.Title, err = e.attr(ctx, img, "title"); err != nil {
			return nil, err
		}
		if image.SourceClass, err = e.attr(ctx, img, "class"); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, nil
}

func (e *Extractor) attr(ctx context.Context, el dom.Element, name string) (string, error) {
	v, _, err := e.browser.Attribute(ctx, el, name)
	return strings.TrimSpace(v), err
}

func isValidImageURL(src string) bool {
	if src == "" || strings.HasPrefix(src, "data:") {
		return false
	}
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "/")
}

func (e *Extractor) capture(ctx context.Context, el dom.Element) (string, error) {
	data, err := e.browser.Capture(ctx, el)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrCaptureEmpty
	}

	dir := e.opts.ScreenshotDir
	if dir == "" {
		dir = "screenshots"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	base := fmt.Sprintf("post_%d", e.now().UnixNano())
	path := filepath.Join(dir, base+".png")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.png", base, i))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
