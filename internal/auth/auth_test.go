package auth_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-group-scraper/internal/auth"
	"facebook-group-scraper/internal/config"
	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/snapshot"
)

const loginPage = `<html><body>
	<form>
		<input id="email" name="email">
		<input id="pass" name="pass" type="password">
		<button name="login" type="submit">Log in</button>
	</form>
</body></html>`

const homePage = `<html><body>
	<div role="navigation"><a aria-label="Your profile" href="/me">Me</a></div>
</body></html>`

// instantActor clicks and types straight through the snapshot browser.
type instantActor struct {
	b *snapshot.Browser
}

func (a instantActor) Pause(ctx context.Context, _, _ time.Duration) error { return ctx.Err() }

func (a instantActor) Click(ctx context.Context, el dom.Element) error {
	return a.b.Click(ctx, el)
}

func (a instantActor) Type(ctx context.Context, el dom.Element, text string) error {
	return a.b.SendKeys(ctx, el, text)
}

// loginBrowser moves to the home page when the login button is clicked.
type loginBrowser struct {
	*snapshot.Browser
	loginKey string
}

func (l *loginBrowser) Click(ctx context.Context, el dom.Element) error {
	if err := l.Browser.Click(ctx, el); err != nil {
		return err
	}
	if el.Key() == l.loginKey {
		return l.Browser.Navigate(ctx, "https://www.facebook.com/")
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fbConfig(t *testing.T) config.FacebookConfig {
	cfg := config.Default().Facebook
	cfg.Auth.CookiesFile = filepath.Join(t.TempDir(), "cookies.json")
	return cfg
}

func validCookies() []dom.Cookie {
	return []dom.Cookie{
		{Name: "c_user", Value: "100012345", Domain: ".facebook.com", Path: "/", Secure: true},
		{Name: "xs", Value: "abc%3Adef", Domain: ".facebook.com", Path: "/", Secure: true, HttpOnly: true},
		{Name: "datr", Value: "xyz", Domain: ".facebook.com", Path: "/", Expires: "2099-01-01T00:00:00Z"},
	}
}

func TestCookieFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	require.NoError(t, auth.WriteCookieFile(path, validCookies()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := auth.ReadCookieFile(path)
	require.NoError(t, err)
	assert.Equal(t, validCookies(), got)
}

func TestReadCookieFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := auth.ReadCookieFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "not found")

	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"example.com": []}`), 0600))
	_, err = auth.ReadCookieFile(other)
	assert.ErrorContains(t, err, "no Facebook cookies")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0600))
	_, err = auth.ReadCookieFile(broken)
	assert.Error(t, err)
}

func TestValidateCookies(t *testing.T) {
	require.NoError(t, auth.ValidateCookies(validCookies()))

	missing := validCookies()[:2]
	assert.ErrorContains(t, auth.ValidateCookies(missing), "datr")

	bad := validCookies()
	bad[0].Value = "me"
	assert.ErrorContains(t, auth.ValidateCookies(bad), "numeric")

	empty := validCookies()
	empty[1].Value = ""
	assert.ErrorContains(t, auth.ValidateCookies(empty), "empty value")
}

func TestUnexpired(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	cookies := []dom.Cookie{
		{Name: "session"},
		{Name: "old", Expires: "2029-12-31T23:59:59Z"},
		{Name: "fresh", Expires: "2030-06-01T00:00:00Z"},
	}
	got := auth.Unexpired(cookies, now)
	require.Len(t, got, 2)
	assert.Equal(t, "session", got[0].Name)
	assert.Equal(t, "fresh", got[1].Name)
}

func TestLoadAndSaveCookies(t *testing.T) {
	cfg := fbConfig(t)
	require.NoError(t, auth.WriteCookieFile(cfg.Auth.CookiesFile, validCookies()))

	b, err := snapshot.FromHTML([]string{homePage})
	require.NoError(t, err)
	m := auth.NewManager(b, instantActor{b}, cfg, quietLogger())
	ctx := context.Background()

	n, err := m.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	url, err := b.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://www.facebook.com", url)

	require.NoError(t, b.SetCookies(ctx, []dom.Cookie{{Name: "tracker", Value: "1", Domain: ".example.com"}}))
	require.NoError(t, os.Remove(cfg.Auth.CookiesFile))

	saved, err := m.SaveCookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	got, err := auth.ReadCookieFile(cfg.Auth.CookiesFile)
	require.NoError(t, err)
	assert.Equal(t, validCookies(), got)
}

func TestIsLoggedIn(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		page string
		url  string
		want bool
	}{
		{"profile indicator", homePage, "https://www.facebook.com/", true},
		{"login form", loginPage, "https://www.facebook.com/", false},
		{"login url", `<html><body></body></html>`, "https://www.facebook.com/login", false},
		{"checkpoint", `<html><body></body></html>`, "https://www.facebook.com/checkpoint/1", false},
		{"no form on facebook", `<html><body><div>feed</div></body></html>`, "https://www.facebook.com/", true},
		{"hidden form", `<html><body><input id="email" hidden></body></html>`, "https://www.facebook.com/", true},
		{"other site", `<html><body></body></html>`, "https://example.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := snapshot.FromHTML([]string{tt.page}, snapshot.WithURL(tt.url))
			require.NoError(t, err)
			m := auth.NewManager(b, instantActor{b}, fbConfig(t), quietLogger())

			got, err := m.IsLoggedIn(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newLoginBrowser(t *testing.T) *loginBrowser {
	t.Helper()
	b, err := snapshot.FromHTML([]string{loginPage})
	require.NoError(t, err)
	buttons, err := b.QueryAll(context.Background(), `[name="login"]`, nil)
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	return &loginBrowser{Browser: b, loginKey: buttons[0].Key()}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	b := newLoginBrowser(t)
	m := auth.NewManager(b, instantActor{b.Browser}, fbConfig(t), quietLogger())

	// instantActor bypasses loginBrowser.Click, so the page never leaves /login.
	err := m.Login(ctx, "me@example.com", "hunter2")
	assert.ErrorIs(t, err, auth.ErrLoginFailed)

	email, err := b.QueryAll(ctx, "#email", nil)
	require.NoError(t, err)
	pass, err := b.QueryAll(ctx, "#pass", nil)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", b.Typed(email[0].Key()))
	assert.Equal(t, "hunter2", b.Typed(pass[0].Key()))
}

type redirectActor struct {
	instantActor
	b *loginBrowser
}

func (a redirectActor) Click(ctx context.Context, el dom.Element) error {
	return a.b.Click(ctx, el)
}

func TestLoginSucceeds(t *testing.T) {
	b := newLoginBrowser(t)
	m := auth.NewManager(b, redirectActor{instantActor{b.Browser}, b}, fbConfig(t), quietLogger())

	require.NoError(t, m.Login(context.Background(), "me@example.com", "hunter2"))
}

func TestLoginRequiresCredentials(t *testing.T) {
	b := newLoginBrowser(t)
	m := auth.NewManager(b, instantActor{b.Browser}, fbConfig(t), quietLogger())

	assert.ErrorIs(t, m.Login(context.Background(), "", "x"), auth.ErrMissingCredentials)
}

func TestEnsureWithCookies(t *testing.T) {
	cfg := fbConfig(t)
	require.NoError(t, auth.WriteCookieFile(cfg.Auth.CookiesFile, validCookies()))

	b, err := snapshot.FromHTML([]string{homePage})
	require.NoError(t, err)
	m := auth.NewManager(b, instantActor{b}, cfg, quietLogger())

	require.NoError(t, m.Ensure(context.Background()))
	assert.Empty(t, b.Clicks())
}

func TestEnsureFallsBackToLogin(t *testing.T) {
	cfg := fbConfig(t)
	cfg.Email = "me@example.com"
	cfg.Password = "hunter2"

	b := newLoginBrowser(t)
	m := auth.NewManager(b, redirectActor{instantActor{b.Browser}, b}, cfg, quietLogger())

	require.NoError(t, m.Ensure(context.Background()))

	_, err := os.Stat(cfg.Auth.CookiesFile)
	assert.NoError(t, err)
}

func TestEnsureCookiesWithoutCredentials(t *testing.T) {
	b := newLoginBrowser(t)
	m := auth.NewManager(b, instantActor{b.Browser}, fbConfig(t), quietLogger())

	assert.ErrorIs(t, m.Ensure(context.Background()), auth.ErrMissingCredentials)
}

func TestEnsureNone(t *testing.T) {
	cfg := fbConfig(t)
	cfg.Auth.Method = "none"
	b := newLoginBrowser(t)
	m := auth.NewManager(b, instantActor{b.Browser}, cfg, quietLogger())

	require.NoError(t, m.Ensure(context.Background()))
}
