package browser

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

// TestResolveURL tests route resolution against base URLs.
func TestResolveURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		base     string
		route    string
		expected string
	}{
		{"root", "http://localhost:8000", "/", "http://localhost:8000/"},
		{"trailing slash base", "http://localhost:8000/", "/cases/1/view/", "http://localhost:8000/cases/1/view/"},
		{"prefix is kept", "https://example.com/platform/", "/cases/", "https://example.com/platform/cases/"},
		{"missing leading slash", "http://web:8001", "accounts/login/", "http://web:8001/accounts/login/"},
		{"query is kept", "http://web:8001", "/cases/?sort=id", "http://web:8001/cases/?sort=id"},
		{"absolute route on base origin", "http://web:8001", "http://web:8001/x/", "http://web:8001/x/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			base, err := url.Parse(tc.base)
			if err != nil {
				t.Fatalf("bad base: %v", err)
			}
			got, err := ResolveURL(base, tc.route)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("ResolveURL(%q, %q) = %q, expected %q", tc.base, tc.route, got, tc.expected)
			}
		})
	}
}

// TestResolveURLOffOrigin tests that routes cannot leave the base origin.
func TestResolveURLOffOrigin(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://web:8001/")
	if err != nil {
		t.Fatalf("bad base: %v", err)
	}
	for _, route := range []string{
		"https://other.host/",
		"http://web:9000/cases/",
		"https://web:8001/cases/",
		"//other.host/cases/",
	} {
		if _, err := ResolveURL(base, route); !errors.Is(err, ErrOffOrigin) {
			t.Errorf("ResolveURL(%q): expected ErrOffOrigin, got %v", route, err)
		}
	}
}

// TestNavigation tests status classification and path extraction.
func TestNavigation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status int
		ok     bool
	}{
		{0, true},
		{200, true},
		{204, true},
		{302, false},
		{404, false},
		{500, false},
	}
	for _, tc := range testCases {
		if got := (Navigation{StatusCode: tc.status}).OK(); got != tc.ok {
			t.Errorf("status %d: OK() = %v, expected %v", tc.status, got, tc.ok)
		}
	}

	nav := Navigation{URL: "http://localhost:8000/accounts/login/?next=/cases/"}
	if nav.Path() != "/accounts/login/" {
		t.Errorf("unexpected path %q", nav.Path())
	}
}

// TestCookieExpired tests cookie expiry handling.
func TestCookieExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if (Cookie{Name: "sessionid"}).Expired(now) {
		t.Error("session cookie should not expire")
	}
	if !(Cookie{Expires: now.Add(-time.Second)}).Expired(now) {
		t.Error("past cookie should be expired")
	}
	if (Cookie{Expires: now.Add(time.Hour)}).Expired(now) {
		t.Error("future cookie should not be expired")
	}
}

// TestCookieConversion tests conversion between DevTools and local cookies.
func TestCookieConversion(t *testing.T) {
	t.Parallel()

	t.Run("persistent cookie", func(t *testing.T) {
		t.Parallel()
		rc := &network.Cookie{
			Name:     "sessionid",
			Value:    "abc",
			Domain:   "localhost",
			Path:     "/",
			Expires:  1767225600.5,
			HTTPOnly: true,
			SameSite: network.CookieSameSiteLax,
		}
		ck := fromNetworkCookie(rc)
		if ck.Expires.Unix() != 1767225600 {
			t.Errorf("unexpected expiry %v", ck.Expires)
		}
		if ck.SameSite != "Lax" || !ck.HTTPOnly {
			t.Errorf("unexpected cookie %+v", ck)
		}

		p := toCookieParam(ck)
		if p.Name != "sessionid" || p.Domain != "localhost" || p.Expires == nil {
			t.Errorf("unexpected param %+v", p)
		}
		if p.SameSite != network.CookieSameSiteLax {
			t.Errorf("unexpected same site %q", p.SameSite)
		}
	})

	t.Run("session cookie", func(t *testing.T) {
		t.Parallel()
		ck := fromNetworkCookie(&network.Cookie{Name: "csrftoken", Session: true, Expires: -1})
		if !ck.Expires.IsZero() {
			t.Errorf("expected zero expiry, got %v", ck.Expires)
		}
		if toCookieParam(ck).Expires != nil {
			t.Error("expected no expiry on param")
		}
	})
}
