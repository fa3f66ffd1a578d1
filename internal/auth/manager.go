// Package auth establishes a logged-in Facebook session in a browser, from
// a saved cookie file or through the login form.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
)

var (
	ErrMissingCredentials = errors.New("email and password are required for login")
	ErrLoginFailed        = errors.New("login failed: still on login page")
)

// Actor performs paced form interactions.
type Actor interface {
	Pause(ctx context.Context, min, max time.Duration) error
	Click(ctx context.Context, el dom.Element) error
	Type(ctx context.Context, el dom.Element, text string) error
}

var loggedInIndicators = []string{
	`[data-testid="blue_bar_profile_link"]`,
	`[aria-label="Your profile"]`,
	`[data-testid="pagelet_welcome_box"]`,
	`[data-testid="nav_bar_profile"]`,
}

const (
	emailSelector    = "#email"
	passwordSelector = "#pass"
	loginSelector    = `[name="login"]`
)

type Manager struct {
	browser dom.Browser
	actor   Actor
	cfg     config.FacebookConfig
	now     func() time.Time
	logger  *logrus.Logger
}

func NewManager(b dom.Browser, actor Actor, cfg config.FacebookConfig, logger *logrus.Logger) *Manager {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.facebook.com"
	}
	return &Manager{
		browser: b,
		actor:   actor,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

func (m *Manager) jar() (dom.CookieJar, error) {
	jar, ok := m.browser.(dom.CookieJar)
	if !ok {
		return nil, fmt.Errorf("cookies: %w", dom.ErrUnsupported)
	}
	return jar, nil
}

// LoadCookies opens the base URL so the cookie domain is established, then
// installs unexpired cookies from the cookie file. It returns how many were
// installed.
func (m *Manager) LoadCookies(ctx context.Context) (int, error) {
	m.logger.Info("Loading cookies from file...")

	jar, err := m.jar()
	if err != nil {
		return 0, err
	}
	cookies, err := ReadCookieFile(m.cfg.Auth.CookiesFile)
	if err != nil {
		return 0, err
	}
	if err := ValidateCookies(cookies); err != nil {
		m.logger.Warnf("Cookie validation: %v", err)
	}

	live := Unexpired(cookies, m.now())
	if skipped := len(cookies) - len(live); skipped > 0 {
		m.logger.Warnf("Skipping %d expired cookies", skipped)
	}

	if err := m.browser.Navigate(ctx, m.cfg.BaseURL); err != nil {
		return 0, err
	}
	if err := jar.SetCookies(ctx, live); err != nil {
		return 0, fmt.Errorf("failed to set cookies: %w", err)
	}

	m.logger.Infof("Loaded %d cookies for Facebook", len(live))
	return len(live), nil
}

// SaveCookies writes the browser's Facebook cookies to the cookie file.
func (m *Manager) SaveCookies(ctx context.Context) (int, error) {
	jar, err := m.jar()
	if err != nil {
		return 0, err
	}
	all, err := jar.Cookies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	cookies := forDomain(all)
	if err := WriteCookieFile(m.cfg.Auth.CookiesFile, cookies); err != nil {
		return 0, err
	}
	m.logger.Infof("Saved %d cookies to %s", len(cookies), m.cfg.Auth.CookiesFile)
	return len(cookies), nil
}

// IsLoggedIn inspects the current page. A visible logged-in indicator wins;
// otherwise a Facebook page outside the login flow without a visible login
// form counts as logged in.
func (m *Manager) IsLoggedIn(ctx context.Context) (bool, error) {
	for _, sel := range loggedInIndicators {
		els, err := m.browser.QueryAll(ctx, sel, nil)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if ok, err := m.browser.Visible(ctx, el); err == nil && ok {
				m.logger.Debugf("Found logged-in indicator: %s", sel)
				return true, nil
			}
		}
	}

	current, err := m.browser.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(current, "login") || strings.Contains(current, "checkpoint") ||
		!strings.Contains(current, "facebook.com") {
		return false, nil
	}

	forms, err := m.browser.QueryAll(ctx, emailSelector, nil)
	if err != nil {
		return false, err
	}
	for _, f := range forms {
		if ok, err := m.browser.Visible(ctx, f); err == nil && ok {
			return false, nil
		}
	}
	m.logger.Debug("No login form visible, likely already logged in")
	return true, nil
}

// CheckSession opens the home page and reports whether the session is
// logged in.
func (m *Manager) CheckSession(ctx context.Context) (bool, error) {
	if err := m.browser.Navigate(ctx, m.cfg.BaseURL); err != nil {
		return false, err
	}
	if err := m.actor.Pause(ctx, time.Second, 2*time.Second); err != nil {
		return false, err
	}
	return m.IsLoggedIn(ctx)
}

func (m *Manager) first(ctx context.Context, selector string) (dom.Element, error) {
	els, err := m.browser.QueryAll(ctx, selector, nil)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("login form element %s not found", selector)
	}
	return els[0], nil
}

// Login fills the login form with humanized typing.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	m.logger.Info("Attempting to login to Facebook...")
	if err := m.browser.Navigate(ctx, strings.TrimRight(m.cfg.BaseURL, "/")+"/login"); err != nil {
		return err
	}
	if err := m.actor.Pause(ctx, time.Second, 3*time.Second); err != nil {
		return err
	}

	emailField, err := m.first(ctx, emailSelector)
	if err != nil {
		return err
	}
	if err := m.actor.Type(ctx, emailField, email); err != nil {
		return fmt.Errorf("failed to type email: %w", err)
	}
	if err := m.actor.Pause(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	passwordField, err := m.first(ctx, passwordSelector)
	if err != nil {
		return err
	}
	if err := m.actor.Type(ctx, passwordField, password); err != nil {
		return fmt.Errorf("failed to type password: %w", err)
	}
	if err := m.actor.Pause(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	button, err := m.first(ctx, loginSelector)
	if err != nil {
		return err
	}
	if err := m.actor.Click(ctx, button); err != nil {
		return fmt.Errorf("failed to click login: %w", err)
	}
	if err := m.actor.Pause(ctx, 4*time.Second, 7*time.Second); err != nil {
		return err
	}

	current, err := m.browser.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(current, "login") {
		return ErrLoginFailed
	}
	m.logger.Info("Login successful")
	return nil
}

// Ensure establishes a session according to the configured method:
// "cookies" loads the cookie file and falls back to the login form when
// credentials are set, "login" always uses the form and "none" does
// nothing. Cookies are saved afterwards when configured.
func (m *Manager) Ensure(ctx context.Context) error {
	method := m.cfg.Auth.Method
	if method == "" || method == "none" {
		return nil
	}

	loggedIn := false
	if method == "cookies" {
		if _, err := m.LoadCookies(ctx); err != nil {
			m.logger.Warnf("Failed to load cookies: %v", err)
		} else {
			ok, err := m.CheckSession(ctx)
			if err != nil {
				return err
			}
			loggedIn = ok
		}
	} else if method != "login" {
		return fmt.Errorf("unsupported auth method: %s", method)
	}

	if !loggedIn {
		if method == "cookies" && m.cfg.Email == "" {
			return fmt.Errorf("cookie session is not logged in: %w", ErrMissingCredentials)
		}
		if err := m.Login(ctx, m.cfg.Email, m.cfg.Password); err != nil {
			return err
		}
	} else {
		m.logger.Info("Already authenticated with Facebook")
	}

	if m.cfg.Auth.SaveCookies {
		if _, err := m.SaveCookies(ctx); err != nil {
			m.logger.Warnf("Failed to save cookies: %v", err)
		}
	}
	return nil
}
