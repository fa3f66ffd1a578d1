package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
)

// Chrome drives Chrome over the DevTools protocol with chromedp.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	logger      *logrus.Logger
	closeOnce   sync.Once
}

var (
	_ dom.Session         = (*Chrome)(nil)
	_ dom.ElementScroller = (*Chrome)(nil)
	_ dom.Typer           = (*Chrome)(nil)
	_ dom.Hoverer         = (*Chrome)(nil)
	_ dom.CookieJar       = (*Chrome)(nil)
	_ dom.PageSourcer     = (*Chrome)(nil)
)

type chromeElement struct {
	node *cdp.Node
}

func (e *chromeElement) Key() string {
	return strconv.FormatInt(int64(e.node.BackendNodeID), 10)
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

func NewChrome(ctx context.Context, cfg config.BrowserConfig, logger *logrus.Logger) (*Chrome, error) {
	if cfg.ChromePath == "" {
		if _, ok := FindChrome(); !ok {
			return nil, fmt.Errorf("no suitable browser found for automation")
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))
	c := newChrome(tabCtx, cancel, allocCancel, timeout(cfg), logger)

	setup := []chromedp.Action{network.Enable()}
	if cfg.Stealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if err := c.start(ctx, setup...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logger.Infof("Chrome session started (headless=%t, stealth=%t)", cfg.Headless, cfg.Stealth)
	return c, nil
}

func newChrome(tabCtx context.Context, cancel, allocCancel context.CancelFunc, navTimeout time.Duration, logger *logrus.Logger) *Chrome {
	return &Chrome{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		navTimeout:  navTimeout,
		logger:      logger,
	}
}

// start allocates the browser on the session context, so the process lives
// until Close. Cancelling ctx during startup tears the allocator down.
func (c *Chrome) start(ctx context.Context, actions ...chromedp.Action) error {
	stop := context.AfterFunc(ctx, c.allocCancel)
	defer stop()

	err := chromedp.Run(c.ctx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// run executes actions on the already started tab and aborts when ctx is done.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Chrome) node(el dom.Element) (*cdp.Node, error) {
	e, ok := el.(*chromeElement)
	if !ok || e == nil {
		return nil, fmt.Errorf("element %T does not belong to chromedp session", el)
	}
	return e.node, nil
}

func (c *Chrome) call(ctx context.Context, el dom.Element, fn string, res interface{}) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}).Do(ctx)
	}))
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()
	if err := c.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) QueryAll(ctx context.Context, selector string, within dom.Element) ([]dom.Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if within != nil {
		n, err := c.node(within)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(n))
	}

	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]dom.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &chromeElement{node: n}
	}
	return out, nil
}

func (c *Chrome) Attribute(ctx context.Context, el dom.Element, name string) (string, bool, error) {
	n, err := c.node(el)
	if err != nil {
		return "", false, err
	}
	var attrs []string
	err = c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = cdpdom.GetAttributes(n.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", false, err
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

func (c *Chrome) Text(ctx context.Context, el dom.Element) (string, error) {
	var text string
	err := c.call(ctx, el, innerTextJS, &text)
	return text, err
}

func (c *Chrome) Visible(ctx context.Context, el dom.Element) (bool, error) {
	var visible bool
	err := c.call(ctx, el, visibleJS, &visible)
	return visible, err
}

func (c *Chrome) Click(ctx context.Context, el dom.Element) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.MouseClickNode(n))
}

func (c *Chrome) ScrollBy(ctx context.Context, deltaY int) error {
	return c.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", deltaY), nil))
}

func (c *Chrome) Capture(ctx context.Context, el dom.Element) ([]byte, error) {
	n, err := c.node(el)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := c.run(ctx, chromedp.Screenshot([]cdp.NodeID{n.NodeID}, &buf, chromedp.ByNodeID)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (c *Chrome) ScrollIntoView(ctx context.Context, el dom.Element) error {
	return c.call(ctx, el, scrollIntoViewJS, nil)
}

func (c *Chrome) Hover(ctx context.Context, el dom.Element) error {
	var center []float64
	if err := c.call(ctx, el, `function() {
		const r = this.getBoundingClientRect();
		return [r.left + r.width / 2, r.top + r.height / 2];
	}`, &center); err != nil {
		return err
	}
	if len(center) != 2 {
		return fmt.Errorf("unexpected element center: %v", center)
	}
	return c.run(ctx, chromedp.MouseEvent(input.MouseMoved, center[0], center[1]))
}

func (c *Chrome) SendKeys(ctx context.Context, el dom.Element, keys string) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	return c.run(ctx, chromedp.SendKeys([]cdp.NodeID{n.NodeID}, keys, chromedp.ByNodeID))
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []dom.Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			params := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HttpOnly)
			if t := cookie.ExpiresAt(); !t.IsZero() {
				exp := cdp.TimeSinceEpoch(t)
				params = params.WithExpires(&exp)
			}
			if err := params.Do(ctx); err != nil {
				c.logger.Warnf("Failed to set cookie %s: %v", cookie.Name, err)
			}
		}
		return nil
	}))
}

func (c *Chrome) Cookies(ctx context.Context) ([]dom.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]dom.Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, dom.Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Secure:   rc.Secure,
			HttpOnly: rc.HTTPOnly,
			Expires:  formatExpiry(rc.Expires),
		})
	}
	return cookies, nil
}

func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.allocCancel()
	})
	return nil
}
