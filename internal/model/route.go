package model

import (
	"strings"
)

// Route is a relative URL path identifying one page of the application
// under test (for example "/cases/1/view/").
type Route string

// Normalize returns the route with surrounding whitespace removed and a
// leading slash guaranteed. Trailing slashes are significant to the
// application under test and are kept as written.
func (r Route) Normalize() Route {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return "/"
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return Route(s)
}

// String returns the route path.
func (r Route) String() string {
	return string(r)
}

// IsRoot reports whether the route is the application root.
func (r Route) IsRoot() bool {
	return r.Normalize() == "/"
}

// RouteGroup is an ordered list of routes that share an authentication
// requirement.
type RouteGroup struct {
	// Name identifies the group in logs and reports ("logged in", "logged out").
	Name string `json:"name"`

	// RequiresAuth is true when an authenticated session must exist before
	// any route in the group is visited.
	RequiresAuth bool `json:"requires_auth"`

	// Routes is the ordered route list.
	Routes []Route `json:"routes"`
}

// Group names used by the default route manifest.
const (
	GroupLoggedIn  = "logged in"
	GroupLoggedOut = "logged out"
)

// NewRouteGroup creates a RouteGroup from raw path strings.
// Every path is normalized; empty entries are dropped.
func NewRouteGroup(name string, requiresAuth bool, paths []string) RouteGroup {
	routes := make([]Route, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		routes = append(routes, Route(p).Normalize())
	}
	return RouteGroup{
		Name:         name,
		RequiresAuth: requiresAuth,
		Routes:       routes,
	}
}

// Len returns the number of routes in the group.
func (g RouteGroup) Len() int {
	return len(g.Routes)
}
