package scraper

import (
	"context"
	"time"

	"facebook-group-scraper/internal/dom"
)

type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Human performs paced interactions. The scraper core never sleeps on its
// own; every delay goes through this interface.
type Human interface {
	Pause(ctx context.Context, min, max time.Duration) error
	Scroll(ctx context.Context, dir Direction, distance int) error
	Click(ctx context.Context, el dom.Element) error
}

// Navigator is implemented by Human values that pace page loads.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// DirectHuman drives the browser without any pacing. Used for replaying
// saved pages and in tests.
type DirectHuman struct {
	Browser dom.Browser
}

func NewDirectHuman(b dom.Browser) *DirectHuman {
	return &DirectHuman{Browser: b}
}

func (h *DirectHuman) Pause(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

func (h *DirectHuman) Scroll(ctx context.Context, dir Direction, distance int) error {
	if dir == Up {
		distance = -distance
	}
	return h.Browser.ScrollBy(ctx, distance)
}

func (h *DirectHuman) Click(ctx context.Context, el dom.Element) error {
	return h.Browser.Click(ctx, el)
}

func (h *DirectHuman) Navigate(ctx context.Context, url string) error {
	return h.Browser.Navigate(ctx, url)
}
