package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/a11yscan/internal/browser"
)

// Defaults for a Django two_factor login page.
const (
	DefaultLoginPath        = "/accounts/login/"
	DefaultUsernameSelector = "#id_auth-username"
	DefaultPasswordSelector = "#id_auth-password"
	DefaultSubmitSelector   = `button[type="submit"]`
	DefaultSessionCookie    = "sessionid"
)

// LoginForm locates the login form.
type LoginForm struct {
	Path             string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
}

// DefaultLoginForm returns the Django two_factor login form.
func DefaultLoginForm() LoginForm {
	return LoginForm{
		Path:             DefaultLoginPath,
		UsernameSelector: DefaultUsernameSelector,
		PasswordSelector: DefaultPasswordSelector,
		SubmitSelector:   DefaultSubmitSelector,
	}
}

// WithDefaults fills empty fields from DefaultLoginForm.
func (f LoginForm) WithDefaults() LoginForm {
	d := DefaultLoginForm()
	if f.Path == "" {
		f.Path = d.Path
	}
	if f.UsernameSelector == "" {
		f.UsernameSelector = d.UsernameSelector
	}
	if f.PasswordSelector == "" {
		f.PasswordSelector = d.PasswordSelector
	}
	if f.SubmitSelector == "" {
		f.SubmitSelector = d.SubmitSelector
	}
	return f
}

// Login establishes sessions by submitting the login form.
type Login struct {
	browser       browser.Browser
	form          LoginForm
	sessionCookie string
	pollInterval  time.Duration
	waitTimeout   time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// LoginOption configures a Login.
type LoginOption func(*Login)

// WithLoginLogger sets the logger.
func WithLoginLogger(logger *slog.Logger) LoginOption {
	return func(l *Login) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSessionCookie sets the cookie that must exist after login.
// An empty name accepts any cookie.
func WithSessionCookie(name string) LoginOption {
	return func(l *Login) {
		l.sessionCookie = name
	}
}

// WithPollInterval sets how often the location is checked after submitting.
func WithPollInterval(d time.Duration) LoginOption {
	return func(l *Login) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithWaitTimeout bounds the wait for the browser to leave the login page.
func WithWaitTimeout(d time.Duration) LoginOption {
	return func(l *Login) {
		if d > 0 {
			l.waitTimeout = d
		}
	}
}

// NewLogin creates a Login that drives form in b.
func NewLogin(b browser.Browser, form LoginForm, opts ...LoginOption) *Login {
	l := &Login{
		browser:       b,
		form:          form.WithDefaults(),
		sessionCookie: DefaultSessionCookie,
		pollInterval:  100 * time.Millisecond,
		waitTimeout:   30 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Form returns the login form in use.
func (l *Login) Form() LoginForm {
	return l.form
}

// EstablishSession logs in and returns the session cookies.
// Login succeeds when the browser leaves the login path and the session
// cookie is set; a two-factor token step keeps the browser on the login
// path and therefore fails.
func (l *Login) EstablishSession(ctx context.Context, creds Credentials) (*Session, error) {
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}
	l.logger.Debug("logging in", "user", creds, "path", l.form.Path)

	nav, err := l.browser.Navigate(ctx, l.form.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	if !nav.OK() {
		return nil, fmt.Errorf("%w: login page %s returned status %d", ErrLoginFailed, l.form.Path, nav.StatusCode)
	}

	if err := l.browser.Fill(ctx, l.form.UsernameSelector, creds.Username); err != nil {
		return nil, fmt.Errorf("failed to fill username: %w", err)
	}
	if err := l.browser.Fill(ctx, l.form.PasswordSelector, creds.Password); err != nil {
		return nil, fmt.Errorf("failed to fill password: %w", err)
	}
	if err := l.browser.Click(ctx, l.form.SubmitSelector); err != nil {
		return nil, fmt.Errorf("failed to submit login form: %w", err)
	}

	if err := l.waitForRedirect(ctx); err != nil {
		return nil, err
	}

	cookies, err := l.browser.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Username:      creds.Username,
		Cookies:       cookies,
		EstablishedAt: l.now(),
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies after login", ErrLoginFailed)
	}
	if l.sessionCookie != "" {
		if _, ok := s.Cookie(l.sessionCookie); !ok {
			return nil, fmt.Errorf("%w: cookie %q not set", ErrLoginFailed, l.sessionCookie)
		}
	}

	l.logger.Info("session established", "username", creds.Username, "cookies", len(cookies))
	return s, nil
}

// waitForRedirect polls the location until it is off the login path.
func (l *Login) waitForRedirect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		loc, err := l.browser.Location(ctx)
		if err != nil {
			return fmt.Errorf("failed to read location after login: %w", err)
		}
		if !l.OnLoginPage(loc) {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: still on %s after submitting the form", ErrLoginFailed, l.form.Path)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// OnLoginPage reports whether location is the login page.
func (l *Login) OnLoginPage(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Path == l.form.Path
}
