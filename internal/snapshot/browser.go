// Package snapshot implements dom.Browser over saved HTML pages. Each page
// stands for the DOM after a further stretch of scrolling, which makes saved
// debug dumps replayable through the scraper without a live browser.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/cespare/xxhash/v2"

	"facebook-group-scraper/internal/dom"
)

const DefaultPageHeight = 1000

// CaptureFunc renders an element for Capture. html is the element's outer HTML.
type CaptureFunc func(ctx context.Context, key, html string) ([]byte, error)

type Browser struct {
	pages      []*goquery.Document
	url        string
	pageHeight int
	offset     int
	maxOffset  int
	capture    CaptureFunc

	clicks  []string
	scrolls []int
	typed   map[string]string
	cookies []dom.Cookie
}

type Option func(*Browser)

func WithURL(url string) Option {
	return func(b *Browser) { b.url = url }
}

// WithPageHeight sets how many scrolled pixels reveal the next page.
func WithPageHeight(px int) Option {
	return func(b *Browser) {
		if px > 0 {
			b.pageHeight = px
		}
	}
}

func WithCapture(fn CaptureFunc) Option {
	return func(b *Browser) { b.capture = fn }
}

func New(pages []*goquery.Document, opts ...Option) (*Browser, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("snapshot: at least one page is required")
	}
	b := &Browser{
		pages:      pages,
		pageHeight: DefaultPageHeight,
		typed:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// FromHTML builds a browser from in-memory pages.
func FromHTML(pages []string, opts ...Option) (*Browser, error) {
	docs := make([]*goquery.Document, 0, len(pages))
	for i, p := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p))
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return New(docs, opts...)
}

// FromFiles builds a browser from HTML files in scroll order.
func FromFiles(paths []string, opts ...Option) (*Browser, error) {
	docs := make([]*goquery.Document, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
		}
		doc, err := goquery.NewDocumentFromReader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return New(docs, opts...)
}

type element struct {
	sel *goquery.Selection
	key string
}

func (e *element) Key() string { return e.key }

func (b *Browser) current() *goquery.Document {
	idx := b.maxOffset / b.pageHeight
	if idx >= len(b.pages) {
		idx = len(b.pages) - 1
	}
	return b.pages[idx]
}

// Page returns the index of the page currently revealed.
func (b *Browser) Page() int {
	idx := b.maxOffset / b.pageHeight
	if idx >= len(b.pages) {
		idx = len(b.pages) - 1
	}
	return idx
}

func (b *Browser) Navigate(_ context.Context, url string) error {
	b.url = url
	b.offset = 0
	b.maxOffset = 0
	return nil
}

func (b *Browser) QueryAll(_ context.Context, selector string, within dom.Element) ([]dom.Element, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	var root *goquery.Selection
	if within == nil {
		root = b.current().Selection
	} else {
		el, err := unwrap(within)
		if err != nil {
			return nil, err
		}
		root = el.sel
	}

	var out []dom.Element
	root.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{sel: s, key: pathKey(s)})
	})
	return out, nil
}

func (b *Browser) Attribute(_ context.Context, el dom.Element, name string) (string, bool, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (b *Browser) Text(_ context.Context, el dom.Element) (string, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

func (b *Browser) Visible(_ context.Context, el dom.Element) (bool, error) {
	e, err := unwrap(el)
	if err != nil {
		return false, err
	}
	return visible(e.sel), nil
}

func (b *Browser) Click(_ context.Context, el dom.Element) error {
	e, err := unwrap(el)
	if err != nil {
		return err
	}
	b.clicks = append(b.clicks, e.key)
	return nil
}

func (b *Browser) ScrollBy(_ context.Context, deltaY int) error {
	b.scrolls = append(b.scrolls, deltaY)
	b.offset += deltaY
	if b.offset < 0 {
		b.offset = 0
	}
	if b.offset > b.maxOffset {
		b.maxOffset = b.offset
	}
	return nil
}

func (b *Browser) Capture(ctx context.Context, el dom.Element) ([]byte, error) {
	e, err := unwrap(el)
	if err != nil {
		return nil, err
	}
	if b.capture == nil {
		return nil, dom.ErrUnsupported
	}
	html, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return nil, fmt.Errorf("failed to render element: %w", err)
	}
	return b.capture(ctx, e.key, html)
}

func (b *Browser) CurrentURL(_ context.Context) (string, error) {
	return b.url, nil
}

// PageHTML serializes the current page.
func (b *Browser) PageHTML(_ context.Context) (string, error) {
	return goquery.OuterHtml(b.current().Selection)
}

func (b *Browser) ScrollIntoView(_ context.Context, el dom.Element) error {
	_, err := unwrap(el)
	return err
}

func (b *Browser) Hover(_ context.Context, el dom.Element) error {
	_, err := unwrap(el)
	return err
}

func (b *Browser) SendKeys(_ context.Context, el dom.Element, keys string) error {
	e, err := unwrap(el)
	if err != nil {
		return err
	}
	b.typed[e.key] += keys
	return nil
}

func (b *Browser) SetCookies(_ context.Context, cookies []dom.Cookie) error {
	b.cookies = append(b.cookies, cookies...)
	return nil
}

func (b *Browser) Cookies(_ context.Context) ([]dom.Cookie, error) {
	return append([]dom.Cookie(nil), b.cookies...), nil
}

func (b *Browser) Close() error { return nil }

// Clicks returns the keys of clicked elements in order.
func (b *Browser) Clicks() []string { return append([]string(nil), b.clicks...) }

// Scrolls returns every ScrollBy delta in order.
func (b *Browser) Scrolls() []int { return append([]int(nil), b.scrolls...) }

// Typed returns the keys sent to the element with the given key.
func (b *Browser) Typed(key string) string { return b.typed[key] }

func unwrap(el dom.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return nil, fmt.Errorf("snapshot: foreign element %T", el)
	}
	return e, nil
}

// pathKey identifies a node by its tag and sibling-index path from the root
// plus a hash of its markup. An unchanged node keeps its key in later pages;
// different content at the same position does not.
func pathKey(sel *goquery.Selection) string {
	html, _ := goquery.OuterHtml(sel)
	return fmt.Sprintf("%s#%016x", nodePath(sel), xxhash.Sum64String(html))
}

func nodePath(sel *goquery.Selection) string {
	var parts []string
	for s := sel; s.Length() > 0; s = s.Parent() {
		parts = append(parts, fmt.Sprintf("%s[%d]", goquery.NodeName(s), s.PrevAll().Length()))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func visible(sel *goquery.Selection) bool {
	for s := sel; s.Length() > 0; s = s.Parent() {
		switch goquery.NodeName(s) {
		case "head", "script", "style", "template", "noscript", "title":
			return false
		}
		if _, hidden := s.Attr("hidden"); hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}
