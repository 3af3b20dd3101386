package config

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/nao1215/a11yscan/internal/model"
)

// LoginConfig describes the login form of the application under test.
// Empty fields fall back to the session package defaults, which match a
// Django two_factor login page.
type LoginConfig struct {
	// Path is the login page route (e.g. "/accounts/login/").
	Path string `yaml:"path,omitempty"`

	// Username is the account used to establish the session.
	Username string `yaml:"username,omitempty"`

	// UsernameSelector and PasswordSelector locate the form fields.
	UsernameSelector string `yaml:"usernameSelector,omitempty"`
	PasswordSelector string `yaml:"passwordSelector,omitempty"`

	// SubmitSelector locates the submit button.
	SubmitSelector string `yaml:"submitSelector,omitempty"`
}

// AuditConfig holds the axe-core audit options.
type AuditConfig struct {
	// IncludedImpacts restricts findings to these impact names.
	IncludedImpacts []string `yaml:"includedImpacts,omitempty"`
}

// RootConfig holds the expectations checked on the application root.
type RootConfig struct {
	// Title is the substring the document title must contain.
	Title string `yaml:"title,omitempty"`

	// Charset is the exact value document.charset must have.
	Charset string `yaml:"charset,omitempty"`

	// RequiresAuth makes the root checks run with the session.
	RequiresAuth *bool `yaml:"requiresAuth,omitempty"`
}

// TargetConfig holds configuration for a single application base URL.
type TargetConfig struct {
	Login LoginConfig `yaml:"login,omitempty"`
	Audit AuditConfig `yaml:"audit,omitempty"`
	Root  RootConfig  `yaml:"root,omitempty"`

	// Routes lists the routes inline. RoutesFile takes precedence.
	Routes *RouteManifest `yaml:"routes,omitempty"`

	// RoutesFile is a JSONC route manifest.
	RoutesFile string `yaml:"routesFile,omitempty"`

	// StatusPolicy is fail or skip.
	StatusPolicy string `yaml:"statusPolicy,omitempty"`

	// Cookie is sent by the discovery crawler ("name=value; name2=value2").
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are sent by the discovery crawler.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are path globs skipped by the discovery crawler.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .a11yscan configuration file.
type File struct {
	// BaseURL is checked when no target is given on the command line.
	BaseURL string `yaml:"baseURL,omitempty"`

	// Targets maps base URLs to their configuration.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`

	// Defaults applies to all targets unless overridden.
	Defaults TargetConfig `yaml:"defaults,omitempty"`
}

// Validate checks the values that can be checked without a target.
func (cf *File) Validate() error {
	configs := []TargetConfig{cf.Defaults}
	for _, tc := range cf.Targets {
		configs = append(configs, tc)
	}
	for _, tc := range configs {
		if tc.StatusPolicy != "" && !ValidStatusPolicy(tc.StatusPolicy) {
			return ErrInvalidStatusPolicy
		}
		if _, err := model.NewImpactFilter(tc.Audit.IncludedImpacts); err != nil {
			return ErrInvalidImpact
		}
	}
	if cf.BaseURL != "" {
		if _, err := ParseTarget(cf.BaseURL); err != nil {
			return err
		}
	}
	return nil
}

// GetTargetConfig returns the configuration for a base URL.
// It merges the target-specific configuration with defaults. Keys are
// compared after normalization, so a trailing slash does not matter.
func (cf *File) GetTargetConfig(baseURL string) TargetConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	want := NormalizeTarget(baseURL)
	for key, tc := range cf.Targets {
		if NormalizeTarget(key) != want {
			continue
		}
		mergeLogin(&result.Login, tc.Login)
		if len(tc.Audit.IncludedImpacts) > 0 {
			result.Audit.IncludedImpacts = tc.Audit.IncludedImpacts
		}
		if tc.Root.Title != "" {
			result.Root.Title = tc.Root.Title
		}
		if tc.Root.Charset != "" {
			result.Root.Charset = tc.Root.Charset
		}
		if tc.Root.RequiresAuth != nil {
			result.Root.RequiresAuth = tc.Root.RequiresAuth
		}
		if tc.Routes != nil {
			result.Routes = tc.Routes
			result.RoutesFile = ""
		}
		if tc.RoutesFile != "" {
			result.RoutesFile = tc.RoutesFile
		}
		if tc.StatusPolicy != "" {
			result.StatusPolicy = tc.StatusPolicy
		}
		if tc.Cookie != "" {
			result.Cookie = tc.Cookie
		}
		if len(tc.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			maps.Copy(result.Headers, tc.Headers)
		}
		if len(tc.IgnorePatterns) > 0 {
			result.IgnorePatterns = tc.IgnorePatterns
		}
		break
	}
	return result
}

func mergeLogin(dst *LoginConfig, src LoginConfig) {
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.UsernameSelector != "" {
		dst.UsernameSelector = src.UsernameSelector
	}
	if src.PasswordSelector != "" {
		dst.PasswordSelector = src.PasswordSelector
	}
	if src.SubmitSelector != "" {
		dst.SubmitSelector = src.SubmitSelector
	}
}

// ParseTarget parses a base URL. It must be absolute http or https.
func ParseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, raw, err) //nolint:errorlint // sentinel is the matchable error
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	return u, nil
}

// NormalizeTarget returns the base URL without trailing slashes, query or
// fragment. Invalid URLs are returned trimmed.
func NormalizeTarget(raw string) string {
	u, err := ParseTarget(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Target is the fully resolved configuration for one base URL.
type Target struct {
	// BaseURL is the normalized base URL.
	BaseURL string

	// Login describes the login form and account.
	Login LoginConfig

	// Impacts is the audit impact filter.
	Impacts model.ImpactFilter

	// Groups lists the route groups to audit in order.
	Groups []model.RouteGroup

	// RootTitle and RootCharset are the root page expectations.
	RootTitle   string
	RootCharset string

	// RootRequiresAuth makes the root checks use the session.
	RootRequiresAuth bool

	// SkipRootChecks disables the root checks.
	SkipRootChecks bool

	// StatusPolicy is fail or skip.
	StatusPolicy string

	// Cookie, Headers and IgnorePatterns configure route discovery.
	Cookie         string
	Headers        map[string]string
	IgnorePatterns []string
}

// ResolveTarget merges command-line options, the configuration file and
// built-in defaults into the effective settings for one base URL.
// Command-line options take precedence over the target section, which
// takes precedence over the defaults section.
func (c *Config) ResolveTarget(raw string) (*Target, error) {
	if _, err := ParseTarget(raw); err != nil {
		return nil, err
	}

	var tc TargetConfig
	if c.TargetConfigs != nil {
		tc = c.TargetConfigs.GetTargetConfig(raw)
	}

	t := &Target{
		BaseURL:        NormalizeTarget(raw),
		Login:          tc.Login,
		RootTitle:      firstNonEmpty(tc.Root.Title, DefaultRootTitle),
		RootCharset:    firstNonEmpty(tc.Root.Charset, DefaultRootCharset),
		SkipRootChecks: c.SkipRootChecks,
		StatusPolicy:   firstNonEmpty(c.StatusPolicy, tc.StatusPolicy, StatusPolicyFail),
		Cookie:         tc.Cookie,
		Headers:        tc.Headers,
		IgnorePatterns: tc.IgnorePatterns,
	}
	if tc.Root.RequiresAuth != nil {
		t.RootRequiresAuth = *tc.Root.RequiresAuth
	}
	if c.Username != "" {
		t.Login.Username = c.Username
	}

	impacts := c.IncludedImpacts
	if len(impacts) == 0 {
		impacts = tc.Audit.IncludedImpacts
	}
	if len(impacts) == 0 {
		impacts = model.DefaultIncludedImpacts
	}
	filter, err := model.NewImpactFilter(impacts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImpact, err) //nolint:errorlint // sentinel is the matchable error
	}
	t.Impacts = filter

	manifest, err := c.routeManifest(tc)
	if err != nil {
		return nil, err
	}
	for _, g := range manifest.Groups() {
		if c.LoggedInOnly && !g.RequiresAuth {
			continue
		}
		if c.LoggedOutOnly && g.RequiresAuth {
			continue
		}
		t.Groups = append(t.Groups, g)
	}

	return t, nil
}

func (c *Config) routeManifest(tc TargetConfig) (*RouteManifest, error) {
	switch {
	case c.RoutesFile != "":
		return LoadRouteManifest(c.RoutesFile)
	case tc.RoutesFile != "":
		return LoadRouteManifest(tc.RoutesFile)
	case tc.Routes != nil:
		if tc.Routes.Len() == 0 {
			return nil, ErrNoRoutes
		}
		return tc.Routes, nil
	default:
		return DefaultRouteManifest(), nil
	}
}

// RouteCount returns the number of routes across all groups.
func (t *Target) RouteCount() int {
	n := 0
	for _, g := range t.Groups {
		n += g.Len()
	}
	return n
}

// HasLoggedInRoutes reports whether any group needs a session.
func (t *Target) HasLoggedInRoutes() bool {
	for _, g := range t.Groups {
		if g.RequiresAuth && g.Len() > 0 {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
