// Package session establishes and persists the authenticated browser
// session used for logged-in routes.
//
// Login drives the application's login form in the browser and returns the
// resulting cookies as a Session. Store seals sessions to disk with age
// (passphrase mode) after encoding them as deterministic CBOR, so that a
// later run can skip the login form. Persistent combines the two: it
// restores a stored session, checks that the application still accepts it,
// and falls back to a fresh login when it does not.
//
// Caching a session for the duration of one run is the caller's concern;
// the scenario runner establishes it at most once.
package session
