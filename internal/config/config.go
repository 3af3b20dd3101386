package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/a11yscan/internal/model"
)

// Default configuration values.
const (
	// DefaultTimeout bounds a single navigation, evaluation or scan.
	// axe-core on a large form page can take several seconds in a cold browser.
	DefaultTimeout = 60 * time.Second

	// DefaultBatchSize is the number of targets checked concurrently.
	// Each target owns a Chrome process, so this stays small.
	DefaultBatchSize = 2

	// AppName is the application name used for XDG directory paths.
	AppName = "a11yscan"

	// DefaultUserAgent identifies a11yscan in server logs.
	DefaultUserAgent = "a11yscan/1.0 (+https://github.com/nao1215/a11yscan)"

	// DefaultWindowWidth and DefaultWindowHeight size the browser viewport.
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 1024

	// DefaultAxeURL is where axe-core is downloaded from when no local
	// script is configured.
	DefaultAxeURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"

	// DefaultCrawlDepth and DefaultMaxPages bound "routes discover".
	DefaultCrawlDepth = 3
	DefaultMaxPages   = 200

	// DefaultCrawlDelay is the delay between requests during discovery.
	DefaultCrawlDelay = 200 * time.Millisecond

	// DefaultMaxBodySize limits the response body read during discovery.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultRootTitle is the substring the root page title must contain.
	DefaultRootTitle = "Dashboard"

	// DefaultRootCharset is the exact document charset expected on the root page.
	DefaultRootCharset = "UTF-8"
)

// Status policies for routes whose main document is not 2xx.
const (
	// StatusPolicyFail reports a non-2xx route as a failed check.
	StatusPolicyFail = "fail"

	// StatusPolicySkip reports a non-2xx route as skipped.
	StatusPolicySkip = "skip"
)

// Environment variables read by the CLI.
const (
	// EnvPassword holds the login password.
	EnvPassword = "A11YSCAN_PASSWORD" //nolint:gosec // variable name, not a credential

	// EnvUsername holds the login username.
	EnvUsername = "A11YSCAN_USERNAME"

	// EnvSessionKey holds the passphrase for the persisted session cache.
	EnvSessionKey = "A11YSCAN_SESSION_KEY"
)

// Config holds all configuration options for a11yscan.
// It is populated from CLI flags and the configuration file and passed
// through the application rather than held in global state.
type Config struct {
	// Targets is the list of base URLs of the application under test.
	Targets []string

	// Timeout bounds each browser operation.
	Timeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of targets checked concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .a11yscan is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// TargetConfigs holds the configuration file contents.
	TargetConfigs *File

	// JSONReport, MarkdownReport, HTMLReport and JUnitReport select the
	// report format. At most one may be set; none selects plain text.
	JSONReport     bool
	MarkdownReport bool
	HTMLReport     bool
	JUnitReport    bool

	// ReportFile is the output file path for the report.
	ReportFile string

	// DBDir is the directory for the history database.
	DBDir string

	// SaveToDB indicates whether run results are stored.
	SaveToDB bool

	// IncludedImpacts restricts audit findings to these impact names.
	// Empty means use the configuration file or DefaultIncludedImpacts.
	IncludedImpacts []string

	// LoggedInOnly and LoggedOutOnly restrict the audit to one route group.
	LoggedInOnly  bool
	LoggedOutOnly bool

	// RoutesFile is a JSONC route manifest overriding the configured routes.
	RoutesFile string

	// SkipRootChecks disables the window, document and title checks.
	SkipRootChecks bool

	// StatusPolicy decides how non-2xx routes are reported.
	// Empty means use the configuration file or StatusPolicyFail.
	StatusPolicy string

	// ChromePath is the Chrome executable. Empty lets chromedp search.
	ChromePath string

	// Headful shows the browser window.
	Headful bool

	// UserAgent is sent by the browser and the discovery crawler.
	UserAgent string

	// Username and Password are the login credentials.
	// Password is never logged.
	Username string
	Password string

	// SessionCache enables persisting the authenticated session across runs.
	SessionCache bool

	// SessionKey is the passphrase that seals the session cache.
	SessionKey string

	// AxeScript is a local axe.min.js. Empty downloads DefaultAxeURL.
	AxeScript string

	// AxeURL is where axe-core is downloaded from.
	AxeURL string

	// CrawlDepth, MaxPages, CrawlDelay and MaxBodySize bound route discovery.
	CrawlDepth  int
	MaxPages    int
	CrawlDelay  time.Duration
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		BatchSize:    DefaultBatchSize,
		UserAgent:    DefaultUserAgent,
		SessionCache: true,
		AxeURL:       DefaultAxeURL,
		CrawlDepth:   DefaultCrawlDepth,
		MaxPages:     DefaultMaxPages,
		CrawlDelay:   DefaultCrawlDelay,
		MaxBodySize:  DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for a11yscan.
// On Linux: ~/.local/share/a11yscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for a11yscan.
// On Linux: ~/.config/a11yscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for a11yscan.
// The axe-core script and the sealed session live here.
// On Linux: ~/.cache/a11yscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, t := range c.Targets {
		if _, err := ParseTarget(t); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.HTMLReport, c.JUnitReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.LoggedInOnly && c.LoggedOutOnly {
		return ErrConflictingRouteGroups
	}

	if c.StatusPolicy != "" && !ValidStatusPolicy(c.StatusPolicy) {
		return ErrInvalidStatusPolicy
	}

	if _, err := model.NewImpactFilter(c.IncludedImpacts); err != nil {
		return ErrInvalidImpact
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// ValidStatusPolicy reports whether p names a known status policy.
func ValidStatusPolicy(p string) bool {
	return p == StatusPolicyFail || p == StatusPolicySkip
}
