package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrClosed is returned when a Browser is used after Close.
	ErrClosed = errors.New("browser is closed")

	// ErrOffOrigin is returned when a route points at another origin.
	ErrOffOrigin = errors.New("route is outside the base origin")
)

// Navigation is the result of loading a route.
type Navigation struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status of the main document.
	// It is 0 when the browser reported no response.
	StatusCode int
}

// OK reports whether the status is 2xx. An unknown status counts as OK.
func (n Navigation) OK() bool {
	return n.StatusCode == 0 || (n.StatusCode >= 200 && n.StatusCode < 300)
}

// Path returns the path of the final URL, or "" if it cannot be parsed.
func (n Navigation) Path() string {
	u, err := url.Parse(n.URL)
	if err != nil {
		return ""
	}
	return u.Path
}

// Cookie is a browser cookie.
type Cookie struct {
	Name     string    `cbor:"1,keyasint" json:"name"`
	Value    string    `cbor:"2,keyasint" json:"value"`
	Domain   string    `cbor:"3,keyasint" json:"domain"`
	Path     string    `cbor:"4,keyasint" json:"path"`
	Expires  time.Time `cbor:"5,keyasint,omitempty" json:"expires,omitzero"`
	Secure   bool      `cbor:"6,keyasint,omitempty" json:"secure,omitempty"`
	HTTPOnly bool      `cbor:"7,keyasint,omitempty" json:"httpOnly,omitempty"`
	SameSite string    `cbor:"8,keyasint,omitempty" json:"sameSite,omitempty"`
}

// Expired reports whether the cookie has an expiry before now.
// Session cookies (zero Expires) never expire.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// Browser is the browser automation surface used by the runner, the login
// flow and the accessibility scanner.
type Browser interface {
	// Navigate loads route and waits for the page to load.
	Navigate(ctx context.Context, route string) (Navigation, error)

	// Evaluate runs a JavaScript expression and decodes its JSON value into res.
	Evaluate(ctx context.Context, expression string, res any) error

	// EvaluateAsync is like Evaluate but awaits a returned promise.
	EvaluateAsync(ctx context.Context, expression string, res any) error

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Location returns the current URL.
	Location(ctx context.Context) (string, error)

	// Fill sets the value of the first element matching selector.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Cookies returns the cookies for the base URL.
	Cookies(ctx context.Context) ([]Cookie, error)

	// SetCookies installs cookies in the browser.
	SetCookies(ctx context.Context, cookies []Cookie) error

	// ClearCookies removes all browser cookies.
	ClearCookies(ctx context.Context) error

	// Close shuts the browser down.
	Close() error
}

// ResolveURL resolves route against base. Relative routes are appended to
// the base path so that an application mounted under a prefix keeps it.
// Absolute routes must share the scheme and host of base.
func ResolveURL(base *url.URL, route string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(route))
	if err != nil {
		return "", fmt.Errorf("invalid route %q: %w", route, err)
	}
	if r.IsAbs() || r.Host != "" {
		if !strings.EqualFold(r.Scheme, base.Scheme) || !strings.EqualFold(r.Host, base.Host) {
			return "", fmt.Errorf("%w: %q is not on %s://%s", ErrOffOrigin, route, base.Scheme, base.Host)
		}
		return r.String(), nil
	}

	u := *base
	path := r.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(base.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = r.RawQuery
	u.Fragment = r.Fragment
	return u.String(), nil
}
