package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
)

// Selenium drives a browser through a local WebDriver service. A driver
// path naming geckodriver selects Firefox, anything else chromedriver.
type Selenium struct {
	driver  selenium.WebDriver
	service *selenium.Service
	logger  *logrus.Logger
}

var (
	_ dom.Session         = (*Selenium)(nil)
	_ dom.ElementScroller = (*Selenium)(nil)
	_ dom.Typer           = (*Selenium)(nil)
	_ dom.CookieJar       = (*Selenium)(nil)
	_ dom.PageSourcer     = (*Selenium)(nil)
)

type seleniumElement struct {
	we  selenium.WebElement
	key string
}

func (e *seleniumElement) Key() string { return e.key }

// keyJS tags each element with a per-page sequence number on first sight.
const keyJS = `const el = arguments[0];
if (!el.__scraperKey) {
	window.__scraperSeq = (window.__scraperSeq || 0) + 1;
	el.__scraperKey = 'se-' + window.__scraperSeq;
}
return el.__scraperKey;`

func isGecko(driverPath string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(driverPath)), "gecko")
}

func NewSelenium(cfg config.BrowserConfig, logger *logrus.Logger) (*Selenium, error) {
	driverPath := cfg.DriverPath
	if driverPath == "" {
		driverPath = "chromedriver"
	}
	port := cfg.SeleniumPort
	if port <= 0 {
		port = 9515
	}

	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-blink-features=AutomationControlled",
		fmt.Sprintf("--window-size=%d,%d", cfg.WindowWidth, cfg.WindowHeight),
	}
	if cfg.Headless {
		args = append(args, "--headless", "--disable-gpu")
	}

	var (
		service *selenium.Service
		err     error
	)
	caps := selenium.Capabilities{}
	selenium.SetDebug(false)

	if isGecko(driverPath) {
		caps["browserName"] = "firefox"
		caps.AddFirefox(firefox.Capabilities{
			Binary: cfg.ChromePath,
			Args:   args,
			Prefs: map[string]interface{}{
				"general.useragent.override": cfg.UserAgent,
				"dom.webdriver.enabled":      false,
				"useAutomationExtension":     false,
			},
		})
		service, err = selenium.NewGeckoDriverService(driverPath, port)
	} else {
		caps["browserName"] = "chrome"
		if cfg.UserDataDir != "" {
			args = append(args, "--user-data-dir="+cfg.UserDataDir)
		}
		args = append(args, "--user-agent="+cfg.UserAgent)
		caps.AddChrome(chrome.Capabilities{
			Path:            cfg.ChromePath,
			Args:            args,
			ExcludeSwitches: []string{"enable-automation"},
		})
		service, err = selenium.NewChromeDriverService(driverPath, port)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start WebDriver service: %w", err)
	}

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", port))
	if err != nil {
		service.Stop()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if err := wd.SetPageLoadTimeout(timeout(cfg)); err != nil {
		logger.Warnf("Failed to set page load timeout: %v", err)
	}

	logger.Infof("Selenium session started (%s, port %d)", caps["browserName"], port)
	return &Selenium{driver: wd, service: service, logger: logger}, nil
}

func (s *Selenium) unwrap(el dom.Element) (selenium.WebElement, error) {
	e, ok := el.(*seleniumElement)
	if !ok || e == nil {
		return nil, fmt.Errorf("element %T does not belong to selenium session", el)
	}
	return e.we, nil
}

func (s *Selenium) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.driver.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Selenium) QueryAll(ctx context.Context, selector string, within dom.Element) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		found []selenium.WebElement
		err   error
	)
	if within != nil {
		parent, uerr := s.unwrap(within)
		if uerr != nil {
			return nil, uerr
		}
		found, err = parent.FindElements(selenium.ByCSSSelector, selector)
	} else {
		found, err = s.driver.FindElements(selenium.ByCSSSelector, selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]dom.Element, 0, len(found))
	for _, we := range found {
		key, err := s.driver.ExecuteScript(keyJS, []interface{}{we})
		if err != nil {
			return nil, fmt.Errorf("tag element: %w", err)
		}
		out = append(out, &seleniumElement{we: we, key: fmt.Sprint(key)})
	}
	return out, nil
}

func (s *Selenium) Attribute(ctx context.Context, el dom.Element, name string) (string, bool, error) {
	we, err := s.unwrap(el)
	if err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := s.driver.ExecuteScript(`return arguments[0].getAttribute(arguments[1]);`, []interface{}{we, name})
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return fmt.Sprint(v), true, nil
}

func (s *Selenium) Text(ctx context.Context, el dom.Element) (string, error) {
	we, err := s.unwrap(el)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return we.Text()
}

func (s *Selenium) Visible(ctx context.Context, el dom.Element) (bool, error) {
	we, err := s.unwrap(el)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return we.IsDisplayed()
}

func (s *Selenium) Click(ctx context.Context, el dom.Element) error {
	we, err := s.unwrap(el)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return we.Click()
}

func (s *Selenium) ScrollBy(ctx context.Context, deltaY int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.driver.ExecuteScript(`window.scrollBy(0, arguments[0]);`, []interface{}{deltaY})
	return err
}

func (s *Selenium) Capture(ctx context.Context, el dom.Element) ([]byte, error) {
	we, err := s.unwrap(el)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return we.Screenshot(true)
}

func (s *Selenium) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.driver.CurrentURL()
}

func (s *Selenium) PageHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.driver.PageSource()
}

func (s *Selenium) ScrollIntoView(ctx context.Context, el dom.Element) error {
	we, err := s.unwrap(el)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = s.driver.ExecuteScript(`arguments[0].scrollIntoView({behavior: 'smooth', block: 'center'});`, []interface{}{we})
	return err
}

func (s *Selenium) SendKeys(ctx context.Context, el dom.Element, keys string) error {
	we, err := s.unwrap(el)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return we.SendKeys(keys)
}

// SetCookies adds cookies to the current domain. Failures are logged and
// skipped.
func (s *Selenium) SetCookies(ctx context.Context, cookies []dom.Cookie) error {
	for _, c := range cookies {
		if err := ctx.Err(); err != nil {
			return err
		}
		domain := c.Domain
		if domain == "" {
			domain = ".facebook.com"
		}
		if !strings.HasPrefix(domain, ".") && domain != "facebook.com" {
			domain = "." + domain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}

		sc := &selenium.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domain,
			Path:   path,
			Secure: c.Secure,
		}
		if exp, ok := cookieExpiry(c); ok {
			sc.Expiry = uint(exp)
		}
		if err := s.driver.AddCookie(sc); err != nil {
			s.logger.Warnf("Failed to set cookie %s: %v", c.Name, err)
			continue
		}
		s.logger.Debugf("Set cookie %s for domain %s", c.Name, domain)
	}
	return nil
}

func (s *Selenium) Cookies(ctx context.Context) ([]dom.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.driver.GetCookies()
	if err != nil {
		return nil, err
	}
	cookies := make([]dom.Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, dom.Cookie{
			Name:    rc.Name,
			Value:   rc.Value,
			Domain:  rc.Domain,
			Path:    rc.Path,
			Secure:  rc.Secure,
			Expires: formatExpiry(float64(rc.Expiry)),
		})
	}
	return cookies, nil
}

func (s *Selenium) Close() error {
	var err error
	if s.driver != nil {
		err = s.driver.Quit()
	}
	if s.service != nil {
		if stopErr := s.service.Stop(); err == nil {
			err = stopErr
		}
	}
	return err
}

