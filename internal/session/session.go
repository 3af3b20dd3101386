package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/a11yscan/internal/browser"
)

var (
	// ErrNoCredentials is returned when the username or password is empty.
	ErrNoCredentials = errors.New("no login credentials: set a username and A11YSCAN_PASSWORD")

	// ErrLoginFailed is returned when the login form did not produce a session.
	ErrLoginFailed = errors.New("login failed")

	// ErrNoPassphrase is returned when a Store is created without a passphrase.
	ErrNoPassphrase = errors.New("no session cache passphrase: set A11YSCAN_SESSION_KEY")

	// ErrNotFound is returned when no usable stored session exists.
	ErrNotFound = errors.New("no stored session")
)

// Credentials identify the account used to log in.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// String hides the password.
func (c Credentials) String() string {
	return c.Username + ":***"
}

// LogValue implements slog.LogValuer so credentials never reach a log
// handler with the password in them.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// Session is an authenticated browser state.
type Session struct {
	// Username is the account the session belongs to.
	Username string

	// Cookies are the browser cookies that carry the session.
	Cookies []browser.Cookie

	// EstablishedAt is when the login happened.
	EstablishedAt time.Time

	// Restored is true when the session came from a Store.
	Restored bool
}

// Cookie returns the cookie with the given name.
func (s *Session) Cookie(name string) (browser.Cookie, bool) {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return browser.Cookie{}, false
}

// Live returns the cookies that have not expired at now.
func (s *Session) Live(now time.Time) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}

// Authenticator establishes a session for credentials.
type Authenticator interface {
	EstablishSession(ctx context.Context, creds Credentials) (*Session, error)
}
