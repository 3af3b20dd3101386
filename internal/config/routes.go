package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/nao1215/a11yscan/internal/model"
)

// defaultRoutes is the built-in route manifest for the case management
// application a11yscan was first written for.
//
//go:embed routes.jsonc
var defaultRoutes []byte

// RouteManifest lists the routes to audit, grouped by whether a session is
// required. Manifests are JSON with comments and trailing commas allowed.
type RouteManifest struct {
	// LoggedIn routes are visited with an authenticated session.
	LoggedIn []string `json:"loggedIn" yaml:"loggedIn"`

	// LoggedOut routes are visited without a session.
	LoggedOut []string `json:"loggedOut" yaml:"loggedOut"`
}

// DefaultRouteManifest returns the embedded manifest.
func DefaultRouteManifest() *RouteManifest {
	m, err := ParseRouteManifest(defaultRoutes)
	if err != nil {
		panic(fmt.Sprintf("embedded route manifest is invalid: %v", err))
	}
	return m
}

// DefaultRouteManifestSource returns the embedded manifest text.
func DefaultRouteManifestSource() []byte {
	return bytes.Clone(defaultRoutes)
}

// LoadRouteManifest reads a JSONC route manifest from disk.
func LoadRouteManifest(path string) (*RouteManifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided manifest path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read route manifest: %w", err)
	}
	m, err := ParseRouteManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseRouteManifest decodes a JSONC route manifest.
// Unknown keys are rejected so that a typo such as "loggedin" does not
// silently audit nothing.
func ParseRouteManifest(data []byte) (*RouteManifest, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()

	var m RouteManifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid route manifest: %w", err)
	}
	if m.Len() == 0 {
		return nil, ErrNoRoutes
	}
	return &m, nil
}

// Len returns the total number of routes.
func (m *RouteManifest) Len() int {
	return len(m.LoggedIn) + len(m.LoggedOut)
}

// Groups returns the logged-in group followed by the logged-out group.
// Empty groups are omitted.
func (m *RouteManifest) Groups() []model.RouteGroup {
	var groups []model.RouteGroup
	if g := model.NewRouteGroup(model.GroupLoggedIn, true, m.LoggedIn); g.Len() > 0 {
		groups = append(groups, g)
	}
	if g := model.NewRouteGroup(model.GroupLoggedOut, false, m.LoggedOut); g.Len() > 0 {
		groups = append(groups, g)
	}
	return groups
}
