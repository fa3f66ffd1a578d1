package scraper

import "time"

// Options tunes classification, extraction and the scroll loop.
type Options struct {
	ValidatePosts bool
	Mode          Mode
	ScreenshotDir string
	ExpandContent bool

	ExpandPauseMin time.Duration
	ExpandPauseMax time.Duration

	// Forward scroll distance range in pixels.
	ScrollMin int
	ScrollMax int

	// Probability of a short backward scroll after each forward scroll.
	BacktrackProbability float64
	BacktrackMin         int
	BacktrackMax         int
	BacktrackPauseMin    time.Duration
	BacktrackPauseMax    time.Duration
}

func DefaultOptions() Options {
	return Options{
		ValidatePosts:        true,
		Mode:                 ModeData,
		ScreenshotDir:        "screenshots",
		ExpandContent:        true,
		ExpandPauseMin:       500 * time.Millisecond,
		ExpandPauseMax:       1500 * time.Millisecond,
		ScrollMin:            400,
		ScrollMax:            800,
		BacktrackProbability: 0.15,
		BacktrackMin:         100,
		BacktrackMax:         300,
		BacktrackPauseMin:    time.Second,
		BacktrackPauseMax:    2 * time.Second,
	}
}
