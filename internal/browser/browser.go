// Package browser opens live automation sessions implementing dom.Session.
// Three backends are available: chromedp (default), rod and selenium.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/human"
)

const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
	DriverSelenium = "selenium"
)

var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// FindChrome returns the first Chrome binary found on PATH.
func FindChrome() (string, bool) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// Open starts a session with the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *logrus.Logger) (dom.Session, error) {
	cfg = withFingerprint(cfg)

	switch cfg.Driver {
	case DriverChromedp, "":
		return NewChrome(ctx, cfg, logger)
	case DriverRod:
		return NewRod(ctx, cfg, logger)
	case DriverSelenium:
		return NewSelenium(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported browser driver: %s", cfg.Driver)
	}
}

// withFingerprint fills an unset user agent or window size from the pools.
func withFingerprint(cfg config.BrowserConfig) config.BrowserConfig {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if cfg.UserAgent == "" {
		cfg.UserAgent = human.RandomUserAgent(rng)
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		size := human.RandomWindowSize(rng)
		cfg.WindowWidth, cfg.WindowHeight = size.Width, size.Height
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}
	return cfg
}

func timeout(cfg config.BrowserConfig) time.Duration {
	return time.Duration(cfg.Timeout) * time.Second
}

// visibleJS reports whether an element is rendered with a non-empty box.
const visibleJS = `function() {
	const s = window.getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0') return false;
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`

const innerTextJS = `function() { return this.innerText || this.textContent || ''; }`

const scrollIntoViewJS = `function() { this.scrollIntoView({behavior: 'smooth', block: 'center'}); }`

func cookieExpiry(c dom.Cookie) (float64, bool) {
	t := c.ExpiresAt()
	if t.IsZero() {
		return 0, false
	}
	return float64(t.Unix()), true
}

func formatExpiry(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
}
