package model

import (
	"sync"
	"time"
)

// RunReport holds the outcome of one run of the suite against one target.
// Checks append results as they finish; the report is safe for concurrent
// use although a single run is sequential.
type RunReport struct {
	mu sync.Mutex

	// Target is the base URL of the application under test.
	Target string `json:"target"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at"`

	// IncludedImpacts lists the impact filter used for audits.
	IncludedImpacts []string `json:"included_impacts"`

	// SessionEstablished is true when a login happened during the run.
	SessionEstablished bool `json:"session_established"`

	// SessionRestored is true when a persisted session was reused.
	SessionRestored bool `json:"session_restored,omitempty"`

	// Results lists the check results in execution order.
	Results []CheckResult `json:"results"`

	// Error holds a run-level error, such as a browser that failed to start.
	Error string `json:"error,omitempty"`
}

// NewRunReport creates a report for the target.
func NewRunReport(target string) *RunReport {
	return &RunReport{
		Target:    target,
		StartedAt: time.Now(),
		Results:   make([]CheckResult, 0),
	}
}

// AddResult appends a check result.
func (r *RunReport) AddResult(res CheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, res)
}

// Finish records the finish time.
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ResultsSnapshot returns a copy of the results.
func (r *RunReport) ResultsSnapshot() []CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CheckResult, len(r.Results))
	copy(out, r.Results)
	return out
}

// Failed reports whether any check failed or errored, or the run errored.
func (r *RunReport) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, res := range r.ResultsSnapshot() {
		if res.Status.IsFailure() {
			return true
		}
	}
	return false
}

// Violations returns all violations keyed by their fingerprint.
func (r *RunReport) Violations() map[string]RouteViolation {
	out := make(map[string]RouteViolation)
	for _, res := range r.ResultsSnapshot() {
		for _, v := range res.Violations {
			out[v.Fingerprint(res.Route)] = RouteViolation{Route: res.Route, Violation: v}
		}
	}
	return out
}

// RouteViolation pairs a violation with the route it was found on.
type RouteViolation struct {
	Route     Route     `json:"route"`
	Violation Violation `json:"violation"`
}
