package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"facebook-group-scraper/internal/dom"
)

// CookieDomain is the key cookies are stored under in the cookie file.
const CookieDomain = "facebook.com"

var requiredCookies = []string{"c_user", "xs", "datr"}

// ReadCookieFile reads a cookie file of the form {"facebook.com": [...]}.
func ReadCookieFile(path string) ([]dom.Cookie, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("cookies file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	var store map[string][]dom.Cookie
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}

	cookies, ok := store[CookieDomain]
	if !ok {
		return nil, fmt.Errorf("no Facebook cookies found in cookies file")
	}
	return cookies, nil
}

// WriteCookieFile stores cookies under CookieDomain with owner-only
// permissions.
func WriteCookieFile(path string, cookies []dom.Cookie) error {
	if cookies == nil {
		cookies = []dom.Cookie{}
	}
	data, err := json.MarshalIndent(map[string][]dom.Cookie{CookieDomain: cookies}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create cookies directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}
	return nil
}

// ValidateCookies checks that the session cookies are present and well formed.
func ValidateCookies(cookies []dom.Cookie) error {
	byName := make(map[string]dom.Cookie, len(cookies))
	for _, c := range cookies {
		byName[c.Name] = c
	}

	for _, name := range requiredCookies {
		c, ok := byName[name]
		switch {
		case !ok:
			return fmt.Errorf("missing required cookie: %s", name)
		case c.Value == "":
			return fmt.Errorf("empty value for required cookie: %s", name)
		case name == "c_user" && !isNumeric(c.Value):
			return fmt.Errorf("c_user cookie should be numeric, got: %s", c.Value)
		}
	}
	return nil
}

// Unexpired drops cookies whose expiry lies before now. Session cookies
// are kept.
func Unexpired(cookies []dom.Cookie, now time.Time) []dom.Cookie {
	out := make([]dom.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if exp := c.ExpiresAt(); !exp.IsZero() && exp.Before(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func forDomain(cookies []dom.Cookie) []dom.Cookie {
	out := make([]dom.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if strings.HasSuffix(strings.TrimPrefix(c.Domain, "."), CookieDomain) {
			out = append(out, c)
		}
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
