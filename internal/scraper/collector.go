package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/pkg/types"
)

// SearchState is owned by a single Collect call.
type SearchState struct {
	RecordsFound      int `json:"records_found"`
	ScrollAttempts    int `json:"scroll_attempts"`
	TargetCount       int `json:"target_count"`
	MaxScrollAttempts int `json:"max_scroll_attempts"`
}

type Outcome string

const (
	OutcomeTargetReached   Outcome = "success"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeCancelled       Outcome = "cancelled"
)

// Result carries the records plus how the run went.
type Result struct {
	RunID      string               `json:"run_id"`
	Records    []types.Post         `json:"records"`
	State      SearchState          `json:"state"`
	Outcome    Outcome              `json:"outcome"`
	Candidates int                  `json:"candidates"`
	Rejections map[RejectReason]int `json:"rejections"`
	Failures   int                  `json:"failures"`
	Skipped    int                  `json:"skipped"`
	Duplicates int                  `json:"duplicates"`
	GroupName  string               `json:"group_name"`
	PageURL    string               `json:"page_url"`
	Duration   time.Duration        `json:"duration"`

	FilterStats *types.FilterStats `json:"filter_stats,omitempty"`
}

// Rejected sums all classifier rejections.
func (r *Result) Rejected() int {
	total := 0
	for _, n := range r.Rejections {
		total += n
	}
	return total
}

// Collector runs the scroll-search loop against one browser session.
type Collector struct {
	browser    dom.Browser
	catalog    *selectors.Catalog
	human      Human
	classifier *Classifier
	extractor  *Extractor
	assembler  *Assembler
	opts       Options
	rng        *rand.Rand
	logger     *logrus.Logger
}

type CollectorOption func(*Collector)

// WithRand fixes the random source used for scroll distances.
func WithRand(rng *rand.Rand) CollectorOption {
	return func(c *Collector) { c.rng = rng }
}

// WithClock overrides the time source for record timestamps and ids.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.extractor.now = now
		c.assembler.now = now
	}
}

func NewCollector(b dom.Browser, catalog *selectors.Catalog, human Human, opts Options, logger *logrus.Logger, options ...CollectorOption) *Collector {
	c := &Collector{
		browser:    b,
		catalog:    catalog,
		human:      human,
		classifier: NewClassifier(b, catalog, opts.ValidatePosts),
		extractor:  NewExtractor(b, catalog, human, opts, logger),
		assembler:  NewAssembler(),
		opts:       opts,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Collect gathers up to target records, scrolling at most maxScrolls times.
// Running out of scrolls is not an error. Browser failures while searching or
// scrolling end the call with no records. Cancellation is honoured between
// cycles and returns the records gathered so far with the context error.
func (c *Collector) Collect(ctx context.Context, target, maxScrolls int) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:      uuid.New().String(),
		Rejections: make(map[RejectReason]int),
		State:      SearchState{TargetCount: target, MaxScrollAttempts: maxScrolls},
	}
	if target <= 0 {
		res.Outcome = OutcomeTargetReached
		return res, nil
	}

	pageURL, err := c.browser.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current url: %w", err)
	}
	groupName, err := ResolveGroupName(ctx, c.browser, c.catalog, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group name: %w", err)
	}
	res.PageURL, res.GroupName = pageURL, groupName
	run := RunInfo{RunID: res.RunID, GroupName: groupName, PageURL: pageURL, StartedAt: start}

	seenElements := make(map[string]struct{})
	seenPosts := make(map[string]struct{})

	for {
		if err := c.search(ctx, run, res, seenElements, seenPosts); err != nil {
			return nil, fmt.Errorf("failed to search for posts: %w", err)
		}
		res.Duration = time.Since(start)

		if len(res.Records) >= target {
			res.Outcome = OutcomeTargetReached
			c.logger.Infof("Collected %d/%d posts after %d scrolls", len(res.Records), target, res.State.ScrollAttempts)
			return res, nil
		}
		if res.State.ScrollAttempts >= maxScrolls {
			res.Outcome = OutcomeBudgetExhausted
			c.logger.Infof("Scroll budget exhausted: collected %d/%d posts after %d scrolls",
				len(res.Records), target, res.State.ScrollAttempts)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeCancelled
			return res, err
		}

		if err := c.scroll(ctx, &res.State); err != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeCancelled
				return res, ctx.Err()
			}
			return nil, fmt.Errorf("failed to scroll: %w", err)
		}
	}
}

func (c *Collector) search(ctx context.Context, run RunInfo, res *Result, seenElements, seenPosts map[string]struct{}) error {
	m, ok, err := c.catalog.Resolve(ctx, c.browser, selectors.FieldPostContainer, nil)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Debug("No post containers on page")
		return nil
	}
	c.logger.Debugf("Found %d post containers", len(m.Elements))

	for _, el := range m.Elements {
		key := el.Key()
		if _, seen := seenElements[key]; seen {
			continue
		}
		seenElements[key] = struct{}{}
		res.Candidates++

		verdict, err := c.classifier.Classify(ctx, el)
		if err != nil {
			res.Failures++
			c.logger.Warnf("Failed to classify container %s: %v", key, err)
			continue
		}
		if !verdict.Post {
			res.Rejections[verdict.Reason]++
			c.logger.Debugf("Rejected container %s: %s", key, verdict.Reason)
			continue
		}

		post, err := c.extractor.Extract(ctx, el)
		if err != nil {
			res.Failures++
			c.logger.Warnf("Failed to extract container %s: %v", key, err)
			continue
		}
		if post == nil {
			res.Skipped++
			continue
		}
		post = c.assembler.Assemble(post, run)

		if _, dup := seenPosts[post.PostID]; dup {
			res.Duplicates++
			c.discardScreenshot(post)
			continue
		}
		seenPosts[post.PostID] = struct{}{}
		res.Records = append(res.Records, *post)
		res.State.RecordsFound = len(res.Records)

		if len(res.Records) >= res.State.TargetCount {
			return nil
		}
	}
	return nil
}

// discardScreenshot removes the capture of a record that was dropped.
func (c *Collector) discardScreenshot(post *types.Post) {
	if post.ScreenshotPath == "" {
		return
	}
	if err := os.Remove(post.ScreenshotPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warnf("Failed to remove screenshot %s: %v", post.ScreenshotPath, err)
	}
}

func (c *Collector) scroll(ctx context.Context, state *SearchState) error {
	distance := c.between(c.opts.ScrollMin, c.opts.ScrollMax)
	if err := c.human.Scroll(ctx, Down, distance); err != nil {
		return err
	}

	if c.opts.BacktrackProbability > 0 && c.rng.Float64() < c.opts.BacktrackProbability {
		back := c.between(c.opts.BacktrackMin, c.opts.BacktrackMax)
		if err := c.human.Scroll(ctx, Up, back); err != nil {
			return err
		}
		if err := c.human.Pause(ctx, c.opts.BacktrackPauseMin, c.opts.BacktrackPauseMax); err != nil {
			return err
		}
	}

	state.ScrollAttempts++
	c.logger.Infof("Scroll %d/%d done, %d posts so far",
		state.ScrollAttempts, state.MaxScrollAttempts, state.RecordsFound)
	return nil
}

func (c *Collector) between(min, max int) int {
	if max <= min {
		return min
	}
	return min + c.rng.Intn(max-min+1)
}
