package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/a11yscan/internal/browser"
	"github.com/nao1215/a11yscan/internal/browser/browsertest"
)

var testCreds = Credentials{Username: "caseworker@example.com", Password: "hunter2"}

// newLoginFake returns a fake whose login form redirects to the dashboard
// and sets a sessionid cookie when submitted.
func newLoginFake() *browsertest.Fake {
	f := browsertest.New(map[string]browsertest.Page{
		DefaultLoginPath: {Title: "Log in"},
		"/":              {Title: "Dashboard"},
	})
	f.OnClick = func(f *browsertest.Fake, _ string) error {
		f.Redirect("/")
		return f.SetCookies(context.Background(), []browser.Cookie{{Name: "sessionid", Value: "abc123", Path: "/"}})
	}
	return f
}

func newTestLogin(f *browsertest.Fake) *Login {
	return NewLogin(f, LoginForm{}, WithPollInterval(time.Millisecond), WithWaitTimeout(200*time.Millisecond))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "correct horse battery staple", WithWorkFactor(10))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

// TestCredentials tests that the password never leaks through formatting.
func TestCredentials(t *testing.T) {
	t.Parallel()

	if (Credentials{Username: "a"}).Valid() {
		t.Error("expected credentials without password to be invalid")
	}
	if !testCreds.Valid() {
		t.Error("expected credentials to be valid")
	}
	if strings.Contains(testCreds.String(), testCreds.Password) {
		t.Errorf("String leaks password: %s", testCreds)
	}
	if strings.Contains(testCreds.LogValue().String(), testCreds.Password) {
		t.Errorf("LogValue leaks password: %s", testCreds.LogValue())
	}
}

// TestSessionLive tests expiry filtering of cookies.
func TestSessionLive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session{Cookies: []browser.Cookie{
		{Name: "sessionid"},
		{Name: "old", Expires: now.Add(-time.Minute)},
		{Name: "csrftoken", Expires: now.Add(time.Hour)},
	}}

	live := s.Live(now)
	if len(live) != 2 || live[0].Name != "sessionid" || live[1].Name != "csrftoken" {
		t.Errorf("unexpected live cookies %+v", live)
	}
	if _, ok := s.Cookie("csrftoken"); !ok {
		t.Error("expected csrftoken cookie")
	}
	if _, ok := s.Cookie("missing"); ok {
		t.Error("unexpected missing cookie")
	}
}

// TestLoginEstablishSession tests the login form flow.
func TestLoginEstablishSession(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		sess, err := newTestLogin(f).EstablishSession(context.Background(), testCreds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Username != testCreds.Username || sess.Restored {
			t.Errorf("unexpected session %+v", sess)
		}
		if _, ok := sess.Cookie("sessionid"); !ok {
			t.Error("expected sessionid cookie")
		}
		if f.Filled(DefaultUsernameSelector) != testCreds.Username {
			t.Errorf("username not filled: %q", f.Filled(DefaultUsernameSelector))
		}
		if f.Filled(DefaultPasswordSelector) != testCreds.Password {
			t.Error("password not filled")
		}
		if clicks := f.Clicks(); len(clicks) != 1 || clicks[0] != DefaultSubmitSelector {
			t.Errorf("unexpected clicks %v", clicks)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		_, err := newTestLogin(f).EstablishSession(context.Background(), Credentials{Username: "x"})
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
		if len(f.Navigations()) != 0 {
			t.Error("expected no navigation without credentials")
		}
	})

	t.Run("stays on login page", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		f.OnClick = nil
		_, err := newTestLogin(f).EstablishSession(context.Background(), testCreds)
		if !errors.Is(err, ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", err)
		}
	})

	t.Run("no session cookie", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		f.OnClick = func(f *browsertest.Fake, _ string) error {
			f.Redirect("/")
			return f.SetCookies(context.Background(), []browser.Cookie{{Name: "csrftoken", Value: "x"}})
		}
		_, err := newTestLogin(f).EstablishSession(context.Background(), testCreds)
		if !errors.Is(err, ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", err)
		}
	})

	t.Run("login page missing", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New(nil)
		_, err := newTestLogin(f).EstablishSession(context.Background(), testCreds)
		if !errors.Is(err, ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", err)
		}
	})

	t.Run("custom form", func(t *testing.T) {
		t.Parallel()
		f := browsertest.New(map[string]browsertest.Page{"/login": {}})
		f.OnClick = func(f *browsertest.Fake, _ string) error {
			f.Redirect("/home")
			return f.SetCookies(context.Background(), []browser.Cookie{{Name: "auth", Value: "1"}})
		}
		form := LoginForm{Path: "/login", UsernameSelector: "#user", PasswordSelector: "#pass", SubmitSelector: "#go"}
		l := NewLogin(f, form, WithSessionCookie("auth"), WithPollInterval(time.Millisecond))
		if _, err := l.EstablishSession(context.Background(), testCreds); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Filled("#user") != testCreds.Username {
			t.Error("custom username selector not used")
		}
		if !l.OnLoginPage(browsertest.Origin + "/login") {
			t.Error("expected /login to be the login page")
		}
	})
}

// TestLoginFormWithDefaults tests default filling of the login form.
func TestLoginFormWithDefaults(t *testing.T) {
	t.Parallel()

	got := LoginForm{Path: "/signin"}.WithDefaults()
	want := DefaultLoginForm()
	want.Path = "/signin"
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// TestStore tests sealing and opening sessions.
func TestStore(t *testing.T) {
	t.Parallel()

	const base = "https://app.example.com"
	sess := &Session{
		Username: testCreds.Username,
		Cookies: []browser.Cookie{
			{Name: "sessionid", Value: "abc123", Domain: "app.example.com", Path: "/", HTTPOnly: true},
			{Name: "stale", Value: "x", Expires: time.Now().Add(-time.Hour)},
		},
	}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		if err := s.Save(base, sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		got, err := s.Load(base+"/", testCreds.Username)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if !got.Restored || got.Username != testCreds.Username {
			t.Errorf("unexpected session %+v", got)
		}
		if len(got.Cookies) != 1 {
			t.Fatalf("unexpected cookies %+v", got.Cookies)
		}
		if c := got.Cookies[0]; c.Name != "sessionid" || c.Value != "abc123" || c.Domain != "app.example.com" || !c.HTTPOnly {
			t.Errorf("unexpected cookies %+v", got.Cookies)
		}

		data, err := os.ReadFile(s.Path(base, testCreds.Username))
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if strings.Contains(string(data), "abc123") {
			t.Error("session file is not encrypted")
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := newTestStore(t).Load(base, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		if err := s.Save(base, sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		other, err := NewStore(s.dir, "wrong", WithWorkFactor(10))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if _, err := other.Load(base, testCreds.Username); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("expected decryption error, got %v", err)
		}
	})

	t.Run("all cookies expired", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		if err := s.Save(base, sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		s.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
		expiring := &Session{Username: "short", Cookies: []browser.Cookie{{Name: "sessionid", Expires: time.Now().Add(time.Hour)}}}
		if err := s.Save(base, expiring); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if _, err := s.Load(base, "short"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		if err := s.Save(base, sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := s.Save("https://other.example.com", sess); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := s.Clear(base, testCreds.Username); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if err := s.Clear(base, testCreds.Username); err != nil {
			t.Errorf("clearing twice should succeed: %v", err)
		}
		n, err := ClearAll(s.dir)
		if err != nil {
			t.Fatalf("failed to clear all: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 removed session, got %d", n)
		}
		left, _ := filepath.Glob(filepath.Join(s.dir, "*"))
		if len(left) != 0 {
			t.Errorf("unexpected files left: %v", left)
		}
	})

	t.Run("no passphrase", func(t *testing.T) {
		t.Parallel()
		if _, err := NewStore(t.TempDir(), ""); !errors.Is(err, ErrNoPassphrase) {
			t.Errorf("expected ErrNoPassphrase, got %v", err)
		}
	})
}

// TestPersistent tests restoring and refreshing stored sessions.
func TestPersistent(t *testing.T) {
	t.Parallel()

	const base = "http://app.test"

	t.Run("logs in and stores", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		store := newTestStore(t)
		p := NewPersistent(f, newTestLogin(f), store, base)

		sess, err := p.EstablishSession(context.Background(), testCreds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Restored {
			t.Error("expected fresh session")
		}
		if _, err := store.Load(base, testCreds.Username); err != nil {
			t.Errorf("expected stored session: %v", err)
		}
	})

	t.Run("restores stored session", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t)
		stored := &Session{Username: testCreds.Username, Cookies: []browser.Cookie{{Name: "sessionid", Value: "stored"}}}
		if err := store.Save(base, stored); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		f := newLoginFake()
		sess, err := NewPersistent(f, newTestLogin(f), store, base).EstablishSession(context.Background(), testCreds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sess.Restored {
			t.Error("expected restored session")
		}
		if len(f.Clicks()) != 0 {
			t.Error("expected no login form submission")
		}
		cookies, _ := f.Cookies(context.Background())
		if len(cookies) != 1 || cookies[0].Value != "stored" {
			t.Errorf("stored cookies not installed: %+v", cookies)
		}
	})

	t.Run("rejected session falls back to login", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t)
		stored := &Session{Username: testCreds.Username, Cookies: []browser.Cookie{{Name: "sessionid", Value: "revoked"}}}
		if err := store.Save(base, stored); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		f := newLoginFake()
		f.Pages["/probe"] = browsertest.Page{RedirectTo: DefaultLoginPath}
		p := NewPersistent(f, newTestLogin(f), store, base, WithProbeRoute("/probe"))
		sess, err := p.EstablishSession(context.Background(), testCreds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Restored || len(f.Clicks()) != 1 {
			t.Errorf("expected a fresh login, got %+v", sess)
		}
		refreshed, err := store.Load(base, testCreds.Username)
		if err != nil {
			t.Fatalf("expected refreshed session: %v", err)
		}
		if c, _ := refreshed.Cookie("sessionid"); c.Value != "abc123" {
			t.Errorf("stored session not refreshed: %+v", refreshed.Cookies)
		}
	})

	t.Run("without store", func(t *testing.T) {
		t.Parallel()
		f := newLoginFake()
		for range 2 {
			if _, err := NewPersistent(f, newTestLogin(f), nil, base).EstablishSession(context.Background(), testCreds); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(f.Clicks()) != 2 {
			t.Errorf("expected two logins, got %d", len(f.Clicks()))
		}
	})
}

// stubAuth counts session requests.
type stubAuth struct {
	calls int
	err   error
}

func (a *stubAuth) EstablishSession(_ context.Context, creds Credentials) (*Session, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &Session{Username: creds.Username}, nil
}

// TestCache tests that sessions are established at most once.
func TestCache(t *testing.T) {
	t.Parallel()

	t.Run("success is cached", func(t *testing.T) {
		t.Parallel()
		auth := &stubAuth{}
		c := NewCache(auth, testCreds)
		for range 3 {
			if _, err := c.Get(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if auth.calls != 1 || !c.Established() || c.Session() == nil {
			t.Errorf("calls=%d established=%v", auth.calls, c.Established())
		}
	})

	t.Run("failure is cached", func(t *testing.T) {
		t.Parallel()
		auth := &stubAuth{err: ErrLoginFailed}
		c := NewCache(auth, testCreds)
		for range 2 {
			if _, err := c.Get(context.Background()); !errors.Is(err, ErrLoginFailed) {
				t.Errorf("expected ErrLoginFailed, got %v", err)
			}
		}
		if auth.calls != 1 || c.Established() {
			t.Errorf("calls=%d established=%v", auth.calls, c.Established())
		}
	})

	t.Run("cancellation is not cached", func(t *testing.T) {
		t.Parallel()
		auth := &stubAuth{err: context.Canceled}
		c := NewCache(auth, testCreds)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.Get(ctx); err == nil {
			t.Fatal("expected error")
		}
		auth.err = nil
		if _, err := c.Get(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if auth.calls != 2 {
			t.Errorf("expected a retry after cancellation, got %d calls", auth.calls)
		}
	})
}
