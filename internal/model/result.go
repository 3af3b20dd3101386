package model

import (
	"errors"
	"time"
)

// CheckKind distinguishes root document checks from route audits.
type CheckKind string

const (
	// KindRoot marks the window, document and title checks on "/".
	KindRoot CheckKind = "root"

	// KindAudit marks an accessibility audit of one route.
	KindAudit CheckKind = "audit"
)

// CheckStatus is the outcome of a single check.
type CheckStatus string

const (
	// StatusPassed means every assertion held.
	StatusPassed CheckStatus = "passed"

	// StatusFailed means an assertion did not hold.
	StatusFailed CheckStatus = "failed"

	// StatusSkipped means the check was not evaluated (non-2xx route with
	// the skip status policy).
	StatusSkipped CheckStatus = "skipped"

	// StatusError means navigation, login or the browser failed before the
	// assertion could be evaluated.
	StatusError CheckStatus = "error"
)

// IsFailure reports whether the status makes the run fail.
func (s CheckStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// CheckResult is the outcome of one independent check.
type CheckResult struct {
	// Name identifies the check ("window has top", "audit /cases/").
	Name string `json:"name"`

	// Kind is root or audit.
	Kind CheckKind `json:"kind"`

	// Group is the route group for audits ("logged in", "logged out").
	Group string `json:"group,omitempty"`

	// Route is the visited route.
	Route Route `json:"route"`

	// Status is the outcome.
	Status CheckStatus `json:"status"`

	// StatusCode is the HTTP status of the main document, 0 when unknown.
	StatusCode int `json:"status_code,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration"`

	// Violations holds the qualifying violations of an audit.
	Violations []Violation `json:"violations,omitempty"`

	// Message carries the failure or skip reason.
	Message string `json:"message,omitempty"`
}

// NewCheckResult builds a result from the error returned by a check.
// A nil error is a pass; an AssertionError is a failure; anything else is
// an error.
func NewCheckResult(name string, kind CheckKind, route Route, err error) CheckResult {
	r := CheckResult{
		Name:   name,
		Kind:   kind,
		Route:  route,
		Status: StatusPassed,
	}
	if err == nil {
		return r
	}
	r.Message = err.Error()
	if ae, ok := AsAssertionError(err); ok {
		r.Status = StatusFailed
		r.Violations = ae.Violations
		return r
	}
	if errors.Is(err, ErrSkipped) {
		r.Status = StatusSkipped
		return r
	}
	r.Status = StatusError
	return r
}

// ErrSkipped marks a check that was deliberately not evaluated.
var ErrSkipped = errors.New("check skipped")
