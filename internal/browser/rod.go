package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
)

// Rod drives Chrome with go-rod. Stealth pages are created with
// go-rod/stealth when enabled.
type Rod struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	page       *rod.Page
	navTimeout time.Duration
	logger     *logrus.Logger
}

var (
	_ dom.Session         = (*Rod)(nil)
	_ dom.ElementScroller = (*Rod)(nil)
	_ dom.Typer           = (*Rod)(nil)
	_ dom.Hoverer         = (*Rod)(nil)
	_ dom.CookieJar       = (*Rod)(nil)
	_ dom.PageSourcer     = (*Rod)(nil)
)

type rodElement struct {
	el  *rod.Element
	key string
}

func (e *rodElement) Key() string { return e.key }

func NewRod(ctx context.Context, cfg config.BrowserConfig, logger *logrus.Logger) (*Rod, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Leakless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")
	if cfg.ChromePath != "" {
		l = l.Bin(cfg.ChromePath)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	b = b.Context(context.Background())

	var p *rod.Page
	if cfg.Stealth {
		p, err = stealth.Page(b)
	} else {
		p, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		b.Close()
		l.Kill()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
		logger.Warnf("Failed to set user agent: %v", err)
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.WindowWidth,
		Height:            cfg.WindowHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		logger.Warnf("Failed to set viewport: %v", err)
	}

	logger.Infof("Rod session started (headless=%t, stealth=%t)", cfg.Headless, cfg.Stealth)
	return &Rod{
		browser:    b,
		launcher:   l,
		page:       p,
		navTimeout: timeout(cfg),
		logger:     logger,
	}, nil
}

func (r *Rod) unwrap(el dom.Element) (*rod.Element, error) {
	e, ok := el.(*rodElement)
	if !ok || e == nil {
		return nil, fmt.Errorf("element %T does not belong to rod session", el)
	}
	return e.el, nil
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()

	p := r.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		r.logger.Warnf("Wait load timeout for %s: %v", url, err)
	}
	return nil
}

func (r *Rod) QueryAll(ctx context.Context, selector string, within dom.Element) ([]dom.Element, error) {
	var (
		found rod.Elements
		err   error
	)
	if within != nil {
		parent, uerr := r.unwrap(within)
		if uerr != nil {
			return nil, uerr
		}
		found, err = parent.Context(ctx).Elements(selector)
	} else {
		found, err = r.page.Context(ctx).Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]dom.Element, 0, len(found))
	for _, el := range found {
		node, err := el.Describe(0, false)
		if err != nil {
			return nil, fmt.Errorf("describe element: %w", err)
		}
		out = append(out, &rodElement{el: el, key: strconv.Itoa(int(node.BackendNodeID))})
	}
	return out, nil
}

func (r *Rod) Attribute(ctx context.Context, el dom.Element, name string) (string, bool, error) {
	e, err := r.unwrap(el)
	if err != nil {
		return "", false, err
	}
	v, err := e.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (r *Rod) Text(ctx context.Context, el dom.Element) (string, error) {
	e, err := r.unwrap(el)
	if err != nil {
		return "", err
	}
	return e.Context(ctx).Text()
}

func (r *Rod) Visible(ctx context.Context, el dom.Element) (bool, error) {
	e, err := r.unwrap(el)
	if err != nil {
		return false, err
	}
	return e.Context(ctx).Visible()
}

func (r *Rod) Click(ctx context.Context, el dom.Element) error {
	e, err := r.unwrap(el)
	if err != nil {
		return err
	}
	return e.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (r *Rod) ScrollBy(ctx context.Context, deltaY int) error {
	_, err := r.page.Context(ctx).Eval(`(d) => window.scrollBy(0, d)`, deltaY)
	return err
}

func (r *Rod) Capture(ctx context.Context, el dom.Element) ([]byte, error) {
	e, err := r.unwrap(el)
	if err != nil {
		return nil, err
	}
	return e.Context(ctx).Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

func (r *Rod) CurrentURL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (r *Rod) PageHTML(ctx context.Context) (string, error) {
	return r.page.Context(ctx).HTML()
}

func (r *Rod) ScrollIntoView(ctx context.Context, el dom.Element) error {
	e, err := r.unwrap(el)
	if err != nil {
		return err
	}
	return e.Context(ctx).ScrollIntoView()
}

func (r *Rod) Hover(ctx context.Context, el dom.Element) error {
	e, err := r.unwrap(el)
	if err != nil {
		return err
	}
	return e.Context(ctx).Hover()
}

func (r *Rod) SendKeys(ctx context.Context, el dom.Element, keys string) error {
	e, err := r.unwrap(el)
	if err != nil {
		return err
	}
	return e.Context(ctx).Input(keys)
}

func (r *Rod) SetCookies(ctx context.Context, cookies []dom.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if exp, ok := cookieExpiry(c); ok {
			p.Expires = proto.TimeSinceEpoch(exp)
		}
		params = append(params, p)
	}
	return r.page.Context(ctx).SetCookies(params)
}

func (r *Rod) Cookies(ctx context.Context) ([]dom.Cookie, error) {
	raw, err := r.page.Context(ctx).Cookies(nil)
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
			Expires:  formatExpiry(float64(rc.Expires)),
		})
	}
	return cookies, nil
}

func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	return err
}
