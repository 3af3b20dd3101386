package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/a11yscan/internal/browser"
)

// DefaultProbeRoute is loaded to check that a restored session is accepted.
const DefaultProbeRoute = "/"

// Persistent restores sessions from a Store and logs in only when the
// stored session is missing or rejected.
type Persistent struct {
	browser    browser.Browser
	login      *Login
	store      *Store
	baseURL    string
	probeRoute string
	logger     *slog.Logger
}

// PersistentOption configures a Persistent.
type PersistentOption func(*Persistent)

// WithProbeRoute sets the route used to check a restored session.
func WithProbeRoute(route string) PersistentOption {
	return func(p *Persistent) {
		if route != "" {
			p.probeRoute = route
		}
	}
}

// WithPersistentLogger sets the logger.
func WithPersistentLogger(logger *slog.Logger) PersistentOption {
	return func(p *Persistent) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPersistent creates a Persistent. A nil store disables persistence and
// every call logs in.
func NewPersistent(b browser.Browser, login *Login, store *Store, baseURL string, opts ...PersistentOption) *Persistent {
	p := &Persistent{
		browser:    b,
		login:      login,
		store:      store,
		baseURL:    baseURL,
		probeRoute: DefaultProbeRoute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EstablishSession implements Authenticator.
func (p *Persistent) EstablishSession(ctx context.Context, creds Credentials) (*Session, error) {
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}

	if p.store != nil {
		sess, err := p.restore(ctx, creds.Username)
		switch {
		case err == nil:
			return sess, nil
		case errors.Is(err, ErrNotFound):
			p.logger.Debug("no stored session", "username", creds.Username)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			p.logger.Warn("stored session unusable, logging in", "username", creds.Username, "error", err)
			if cerr := p.store.Clear(p.baseURL, creds.Username); cerr != nil {
				p.logger.Warn("failed to remove stored session", "error", cerr)
			}
		}
	}

	sess, err := p.login.EstablishSession(ctx, creds)
	if err != nil {
		return nil, err
	}
	if p.store != nil {
		if err := p.store.Save(p.baseURL, sess); err != nil {
			p.logger.Warn("failed to store session", "error", err)
		}
	}
	return sess, nil
}

// restore installs the stored session and checks that the application does
// not send the browser back to the login page.
func (p *Persistent) restore(ctx context.Context, username string) (*Session, error) {
	sess, err := p.store.Load(p.baseURL, username)
	if err != nil {
		return nil, err
	}

	if err := p.browser.ClearCookies(ctx); err != nil {
		return nil, err
	}
	if err := p.browser.SetCookies(ctx, sess.Cookies); err != nil {
		return nil, fmt.Errorf("failed to install stored cookies: %w", err)
	}

	nav, err := p.browser.Navigate(ctx, p.probeRoute)
	if err != nil {
		return nil, fmt.Errorf("failed to check stored session: %w", err)
	}
	if !nav.OK() {
		return nil, fmt.Errorf("stored session check returned status %d", nav.StatusCode)
	}
	if p.login.OnLoginPage(nav.URL) {
		if err := p.browser.ClearCookies(ctx); err != nil {
			return nil, err
		}
		return nil, errors.New("stored session was rejected")
	}

	p.logger.Info("session restored", "username", username, "saved_at", sess.EstablishedAt)
	return sess, nil
}
