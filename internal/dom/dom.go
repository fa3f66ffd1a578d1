// Package dom defines the narrow browser contract the scraper core runs
// against. Backends live in internal/browser and internal/snapshot.
package dom

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by backends for capabilities they cannot provide.
var ErrUnsupported = errors.New("operation not supported by browser backend")

// Element is an opaque handle to a DOM node. Handles are only valid until the
// next scroll or re-render and must not be cached across scroll cycles.
type Element interface {
	// Key identifies the underlying node for the lifetime of the page.
	Key() string
}

// Browser is a single exclusive automation session.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// QueryAll returns elements matching a CSS selector. A nil within searches
	// the whole document.
	QueryAll(ctx context.Context, selector string, within Element) ([]Element, error)
	// Attribute reports the attribute value and whether it was present.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	Text(ctx context.Context, el Element) (string, error)
	Visible(ctx context.Context, el Element) (bool, error)
	Click(ctx context.Context, el Element) error
	ScrollBy(ctx context.Context, deltaY int) error
	// Capture returns PNG bytes of the element's bounding box.
	Capture(ctx context.Context, el Element) ([]byte, error)
	CurrentURL(ctx context.Context) (string, error)
}

// ElementScroller is implemented by backends that can bring an element
// into the viewport.
type ElementScroller interface {
	ScrollIntoView(ctx context.Context, el Element) error
}

// Typer is implemented by backends that can send keystrokes to a focused
// input element.
type Typer interface {
	SendKeys(ctx context.Context, el Element, keys string) error
}

// Hoverer is implemented by backends that can move the pointer over an element.
type Hoverer interface {
	Hover(ctx context.Context, el Element) error
}

// CookieJar is implemented by backends with access to the browser cookie store.
type CookieJar interface {
	SetCookies(ctx context.Context, cookies []Cookie) error
	Cookies(ctx context.Context) ([]Cookie, error)
}

// PageSourcer is implemented by backends that can serialize the current
// document.
type PageSourcer interface {
	PageHTML(ctx context.Context) (string, error)
}

// Session is a Browser owning OS resources.
type Session interface {
	Browser
	Close() error
}

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HttpOnly bool   `json:"httpOnly"`
	Expires  string `json:"expires,omitempty"`
}

// ExpiresAt parses Expires as RFC 3339. The zero time means a session cookie.
func (c Cookie) ExpiresAt() time.Time {
	if c.Expires == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, c.Expires)
	if err != nil {
		return time.Time{}
	}
	return t
}
