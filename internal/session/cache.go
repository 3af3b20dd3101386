package session

import (
	"context"
	"sync"
)

// Cache establishes a session at most once. The first result, success or
// failure, is returned to every later caller.
type Cache struct {
	auth  Authenticator
	creds Credentials

	mu   sync.Mutex
	done bool
	sess *Session
	err  error
}

// NewCache returns a Cache that establishes sessions through auth.
func NewCache(auth Authenticator, creds Credentials) *Cache {
	return &Cache{auth: auth, creds: creds}
}

// Get returns the cached session, establishing it on first use.
// A call cancelled before the authenticator returns is not cached.
func (c *Cache) Get(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.sess, c.err
	}

	sess, err := c.auth.EstablishSession(ctx, c.creds)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	c.done, c.sess, c.err = true, sess, err
	return sess, err
}

// Established reports whether a session was established successfully.
func (c *Cache) Established() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done && c.err == nil
}

// Session returns the cached session or nil.
func (c *Cache) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}
