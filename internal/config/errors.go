package config

import "errors"

// Configuration validation errors returned by Config.Validate and the loaders.
var (
	// ErrNoTarget is returned when no base URL is given on the command line
	// or in the configuration file.
	ErrNoTarget = errors.New("no target specified: provide a base URL such as http://localhost:8000")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of
	// --json, --markdown, --html and --junit is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown, --html, --junit")

	// ErrConflictingRouteGroups is returned when both --logged-in-only and
	// --logged-out-only are specified.
	ErrConflictingRouteGroups = errors.New("conflicting route groups: --logged-in-only and --logged-out-only cannot be used together")

	// ErrInvalidStatusPolicy is returned for a status policy other than fail or skip.
	ErrInvalidStatusPolicy = errors.New("invalid status policy: must be fail or skip")

	// ErrInvalidImpact is returned when an included impact is not one of
	// minor, moderate, serious or critical.
	ErrInvalidImpact = errors.New("invalid impact: must be minor, moderate, serious or critical")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidTarget is returned when a target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrNoRoutes is returned when a route manifest declares no routes.
	ErrNoRoutes = errors.New("route manifest declares no routes")
)
