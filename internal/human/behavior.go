// Package human paces browser interactions so a session reads like a person
// browsing: stepped scrolling, reading pauses, hover before click and
// per-keystroke typing.
package human

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/scraper"
)

type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration

	ScrollPauseMin time.Duration
	ScrollPauseMax time.Duration

	ReadingPauseProbability float64
	ReadingPauseMin         time.Duration
	ReadingPauseMax         time.Duration

	// FastMode scrolls in fewer steps with a fixed short pause and no
	// reading pauses.
	FastMode      bool
	MouseMovement bool
	RandomTyping  bool
}

func DefaultConfig() Config {
	return Config{
		MinDelay:                500 * time.Millisecond,
		MaxDelay:                2 * time.Second,
		ScrollPauseMin:          100 * time.Millisecond,
		ScrollPauseMax:          500 * time.Millisecond,
		ReadingPauseProbability: 0.1,
		ReadingPauseMin:         time.Second,
		ReadingPauseMax:         3 * time.Second,
		MouseMovement:           true,
		RandomTyping:            true,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Behavior implements scraper.Human and scraper.Navigator on top of a
// browser session.
type Behavior struct {
	browser dom.Browser
	cfg     Config
	rng     *rand.Rand
	sleep   SleepFunc
	logger  *logrus.Logger

	mu      sync.Mutex
	start   time.Time
	actions int
}

var (
	_ scraper.Human     = (*Behavior)(nil)
	_ scraper.Navigator = (*Behavior)(nil)
)

type Option func(*Behavior)

func WithRand(rng *rand.Rand) Option {
	return func(b *Behavior) { b.rng = rng }
}

// WithSleep replaces the blocking sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(b *Behavior) { b.sleep = fn }
}

func New(browser dom.Browser, cfg Config, logger *logrus.Logger, opts ...Option) *Behavior {
	b := &Behavior{
		browser: browser,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleep,
		logger:  logger,
		start:   time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Behavior) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(b.rng.Int63n(int64(max-min)+1))
}

func (b *Behavior) intn(min, max int) int {
	if max <= min {
		return min
	}
	return min + b.rng.Intn(max-min+1)
}

func (b *Behavior) count() {
	b.mu.Lock()
	b.actions++
	b.mu.Unlock()
}

// Pause sleeps for a uniformly random duration in [min, max].
func (b *Behavior) Pause(ctx context.Context, min, max time.Duration) error {
	if err := b.sleep(ctx, b.uniform(min, max)); err != nil {
		return err
	}
	b.count()
	return nil
}

// Delay pauses for the configured default range.
func (b *Behavior) Delay(ctx context.Context) error {
	return b.Pause(ctx, b.cfg.MinDelay, b.cfg.MaxDelay)
}

// Scroll moves the window by distance pixels in several small steps. The
// steps always add up to exactly distance.
func (b *Behavior) Scroll(ctx context.Context, dir scraper.Direction, distance int) error {
	if distance <= 0 {
		return nil
	}
	sign := 1
	if dir == scraper.Up {
		sign = -1
	}

	steps := b.intn(5, 15)
	if b.cfg.FastMode {
		steps = b.intn(2, 5)
	}
	if steps > distance {
		steps = distance
	}
	stepSize := distance / steps

	moved := 0
	for i := 0; i < steps; i++ {
		delta := stepSize
		if i == steps-1 {
			delta = distance - moved
		}
		if err := b.browser.ScrollBy(ctx, sign*delta); err != nil {
			return err
		}
		moved += delta

		if b.cfg.FastMode {
			if err := b.sleep(ctx, 50*time.Millisecond); err != nil {
				return err
			}
			continue
		}
		if err := b.sleep(ctx, b.uniform(b.cfg.ScrollPauseMin, b.cfg.ScrollPauseMax)); err != nil {
			return err
		}
		if b.rng.Float64() < b.cfg.ReadingPauseProbability {
			if err := b.sleep(ctx, b.uniform(b.cfg.ReadingPauseMin, b.cfg.ReadingPauseMax)); err != nil {
				return err
			}
		}
	}

	b.logger.Debugf("Scrolled %s %dpx in %d steps", dir, distance, steps)
	if b.cfg.FastMode {
		b.count()
		return nil
	}
	return b.Pause(ctx, 500*time.Millisecond, 1500*time.Millisecond)
}

// Click brings el into view, hovers it when supported and clicks after a
// short pause.
func (b *Behavior) Click(ctx context.Context, el dom.Element) error {
	if s, ok := b.browser.(dom.ElementScroller); ok {
		if err := s.ScrollIntoView(ctx, el); err != nil {
			b.logger.Debugf("Scroll into view failed: %v", err)
		} else if err := b.Pause(ctx, 500*time.Millisecond, time.Second); err != nil {
			return err
		}
	}
	if h, ok := b.browser.(dom.Hoverer); ok && b.cfg.MouseMovement {
		if err := h.Hover(ctx, el); err != nil {
			b.logger.Debugf("Hover failed: %v", err)
		}
	}
	if err := b.Pause(ctx, 200*time.Millisecond, 500*time.Millisecond); err != nil {
		return err
	}
	return b.browser.Click(ctx, el)
}

// Type focuses el and types text one character at a time with occasional
// thinking pauses.
func (b *Behavior) Type(ctx context.Context, el dom.Element, text string) error {
	typer, ok := b.browser.(dom.Typer)
	if !ok {
		return dom.ErrUnsupported
	}
	if err := b.Click(ctx, el); err != nil {
		return err
	}

	if !b.cfg.RandomTyping {
		return typer.SendKeys(ctx, el, text)
	}
	for _, r := range text {
		if err := typer.SendKeys(ctx, el, string(r)); err != nil {
			return err
		}
		if err := b.sleep(ctx, b.uniform(50*time.Millisecond, 150*time.Millisecond)); err != nil {
			return err
		}
		if b.rng.Float64() < 0.05 {
			if err := b.sleep(ctx, b.uniform(200*time.Millisecond, 500*time.Millisecond)); err != nil {
				return err
			}
		}
	}
	b.count()
	return nil
}

// Navigate loads url with a pause before and reading pauses after.
func (b *Behavior) Navigate(ctx context.Context, url string) error {
	if err := b.Pause(ctx, time.Second, 3*time.Second); err != nil {
		return err
	}
	if err := b.browser.Navigate(ctx, url); err != nil {
		return err
	}
	if err := b.Pause(ctx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}
	return b.Pause(ctx, time.Second, 2*time.Second)
}

type Stats struct {
	SessionDuration  time.Duration `json:"session_duration"`
	ActionsPerformed int           `json:"actions_performed"`
	ActionsPerMinute float64       `json:"actions_per_minute"`
}

func (b *Behavior) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := time.Since(b.start)
	minutes := d.Minutes()
	if minutes < 1 {
		minutes = 1
	}
	return Stats{
		SessionDuration:  d,
		ActionsPerformed: b.actions,
		ActionsPerMinute: float64(b.actions) / minutes,
	}
}

// LogStats writes the session summary at info level.
func (b *Behavior) LogStats() {
	s := b.Stats()
	b.logger.Infof("Session stats: duration=%s actions=%d actions/min=%.2f",
		s.SessionDuration.Round(time.Second), s.ActionsPerformed, s.ActionsPerMinute)
}

// FromConfig applies the file configuration over DefaultConfig.
func FromConfig(cfg config.HumanConfig) Config {
	c := DefaultConfig()
	c.FastMode = cfg.FastMode
	return c
}
