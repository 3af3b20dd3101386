package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestRouteNormalize tests leading slash handling of Route.
func TestRouteNormalize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in       Route
		expected Route
	}{
		{"/cases/1/view/", "/cases/1/view/"},
		{"cases/", "/cases/"},
		{"  /audits/ ", "/audits/"},
		{"", "/"},
		{"/", "/"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.in), func(t *testing.T) {
			t.Parallel()
			if got := tc.in.Normalize(); got != tc.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tc.in, got, tc.expected)
			}
		})
	}
}

// TestNewRouteGroup tests that empty entries are dropped and order is kept.
func TestNewRouteGroup(t *testing.T) {
	t.Parallel()

	g := NewRouteGroup(GroupLoggedIn, true, []string{"/cases/", "", "reports/", "  "})
	if g.Len() != 2 {
		t.Fatalf("expected 2 routes, got %d", g.Len())
	}
	if g.Routes[0] != "/cases/" || g.Routes[1] != "/reports/" {
		t.Errorf("unexpected routes: %v", g.Routes)
	}
	if !g.RequiresAuth {
		t.Error("expected RequiresAuth to be true")
	}
}

// TestImpactString tests the String method of Impact.
func TestImpactString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		impact   Impact
		expected string
	}{
		{ImpactMinor, "minor"},
		{ImpactModerate, "moderate"},
		{ImpactSerious, "serious"},
		{ImpactCritical, "critical"},
		{Impact(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.impact.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.impact.String(), tc.expected)
			}
		})
	}
}

// TestImpactOrdering tests that impact levels are ordered by severity.
func TestImpactOrdering(t *testing.T) {
	t.Parallel()

	if !(ImpactMinor < ImpactModerate && ImpactModerate < ImpactSerious && ImpactSerious < ImpactCritical) {
		t.Error("impacts are not ordered minor < moderate < serious < critical")
	}
}

// TestParseImpact tests parsing of impact names.
func TestParseImpact(t *testing.T) {
	t.Parallel()

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()
		got, err := ParseImpact("Serious")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != ImpactSerious {
			t.Errorf("got %v, expected serious", got)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()
		_, err := ParseImpact("severe")
		if !errors.Is(err, ErrInvalidImpact) {
			t.Errorf("expected ErrInvalidImpact, got %v", err)
		}
	})
}

// TestImpactJSON tests that impacts serialize as names and tolerate null-like values.
func TestImpactJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Violation{ID: "region", Impact: ImpactModerate})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["impact"] != "moderate" {
		t.Errorf("expected impact moderate, got %v", decoded["impact"])
	}

	var v Violation
	if err := json.Unmarshal([]byte(`{"id":"x","impact":"bogus"}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Impact != ImpactUnknown {
		t.Errorf("expected unknown impact, got %v", v.Impact)
	}
}

// TestImpactFilter tests filtering of violations by impact.
func TestImpactFilter(t *testing.T) {
	t.Parallel()

	violations := []Violation{
		{ID: "color-contrast", Impact: ImpactSerious},
		{ID: "region", Impact: ImpactModerate},
		{ID: "image-alt", Impact: ImpactCritical},
		{ID: "empty-heading", Impact: ImpactMinor},
	}

	t.Run("default keeps critical and serious", func(t *testing.T) {
		t.Parallel()
		got := DefaultImpactFilter().Filter(violations)
		if len(got) != 2 {
			t.Fatalf("expected 2 violations, got %d", len(got))
		}
		if got[0].ID != "color-contrast" || got[1].ID != "image-alt" {
			t.Errorf("order not preserved: %v", RuleIDs(got))
		}
	})

	t.Run("custom filter", func(t *testing.T) {
		t.Parallel()
		f, err := NewImpactFilter([]string{"minor"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := f.Filter(violations)
		if len(got) != 1 || got[0].ID != "empty-heading" {
			t.Errorf("unexpected result: %v", RuleIDs(got))
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		t.Parallel()
		if _, err := NewImpactFilter([]string{"critical", "nope"}); err == nil {
			t.Error("expected error for invalid impact name")
		}
	})

	t.Run("names are most severe first", func(t *testing.T) {
		t.Parallel()
		f, _ := NewImpactFilter([]string{"minor", "critical", "serious"})
		if f.String() != "critical,serious,minor" {
			t.Errorf("got %q", f.String())
		}
	})

	t.Run("zero value includes nothing", func(t *testing.T) {
		t.Parallel()
		var f ImpactFilter
		if !f.IsEmpty() || len(f.Filter(violations)) != 0 {
			t.Error("zero filter should include nothing")
		}
	})
}

// TestViolationFingerprint tests fingerprint stability.
func TestViolationFingerprint(t *testing.T) {
	t.Parallel()

	a := Violation{
		ID: "label",
		Nodes: []ViolationNode{
			{Target: []string{"#b"}, HTML: "<input id=b>"},
			{Target: []string{"#a"}, HTML: "<input id=a>"},
		},
	}
	b := Violation{
		ID: "label",
		Nodes: []ViolationNode{
			{Target: []string{"#a"}, HTML: "<input id=a class=x>"},
			{Target: []string{"#b"}, HTML: "<input id=b>"},
		},
	}

	if a.Fingerprint("/cases/") != b.Fingerprint("cases/") {
		t.Error("fingerprint should ignore node order, html and missing leading slash")
	}
	if a.Fingerprint("/cases/") == a.Fingerprint("/reports/") {
		t.Error("fingerprint should depend on route")
	}
	if len(a.Fingerprint("/")) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a.Fingerprint("/")))
	}
}

// TestAssertionError tests error matching and messages.
func TestAssertionError(t *testing.T) {
	t.Parallel()

	var err error = &AssertionError{Check: "document charset", Route: "/", Expected: `"UTF-8"`, Actual: `"utf-8"`}
	wrapped := fmt.Errorf("root: %w", err)

	if !errors.Is(wrapped, ErrAssertion) {
		t.Error("expected errors.Is to match ErrAssertion")
	}
	ae, ok := AsAssertionError(wrapped)
	if !ok || ae.Check != "document charset" {
		t.Fatalf("AsAssertionError failed: %v", wrapped)
	}
	if err.Error() != `document charset: /: expected "UTF-8", got "utf-8"` {
		t.Errorf("unexpected message: %s", err.Error())
	}

	audit := &AssertionError{Check: "audit", Route: "/x/", Violations: []Violation{{ID: "a"}, {ID: "b"}}}
	if audit.Error() != "audit: /x/: 2 accessibility violation(s): a, b" {
		t.Errorf("unexpected message: %s", audit.Error())
	}
}

// TestNewCheckResult tests status classification of check errors.
func TestNewCheckResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected CheckStatus
	}{
		{"nil is pass", nil, StatusPassed},
		{"assertion is failure", &AssertionError{Check: "c"}, StatusFailed},
		{"skip", fmt.Errorf("status 404: %w", ErrSkipped), StatusSkipped},
		{"other is error", errors.New("net::ERR_CONNECTION_REFUSED"), StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := NewCheckResult("check", KindRoot, "/", tc.err)
			if r.Status != tc.expected {
				t.Errorf("got %s, expected %s", r.Status, tc.expected)
			}
			if tc.err != nil && r.Message == "" {
				t.Error("expected message to be set")
			}
		})
	}
}

// TestRunReportAndSummary tests aggregation over results.
func TestRunReportAndSummary(t *testing.T) {
	t.Parallel()

	r := NewRunReport("http://localhost:8000")
	r.AddResult(CheckResult{Name: "a", Status: StatusPassed})
	r.AddResult(CheckResult{
		Name:   "b",
		Route:  "/cases/",
		Status: StatusFailed,
		Violations: []Violation{
			{ID: "color-contrast", Impact: ImpactSerious},
			{ID: "image-alt", Impact: ImpactCritical},
		},
	})
	r.AddResult(CheckResult{Name: "c", Status: StatusSkipped})
	r.AddResult(CheckResult{Name: "d", Status: StatusError})
	time.Sleep(time.Millisecond)
	r.Finish()

	if !r.Failed() {
		t.Error("expected report to be failed")
	}
	if r.Duration() <= 0 {
		t.Error("expected positive duration")
	}
	if len(r.Violations()) != 2 {
		t.Errorf("expected 2 fingerprints, got %d", len(r.Violations()))
	}

	s := NewSummary(r)
	if s.Total != 4 || s.Passed != 1 || s.Failed != 1 || s.Skipped != 1 || s.Errored != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.CriticalCount != 1 || s.SeriousCount != 1 || s.TotalViolations() != 2 {
		t.Errorf("unexpected impact counts: %+v", s)
	}
	if s.CountForImpact(ImpactSerious) != 1 {
		t.Error("CountForImpact(serious) should be 1")
	}
	if !s.HasFailures() {
		t.Error("expected HasFailures")
	}
}

// TestRunReportPassing tests that skipped checks do not fail a run.
func TestRunReportPassing(t *testing.T) {
	t.Parallel()

	r := NewRunReport("http://localhost:8000")
	r.AddResult(CheckResult{Name: "a", Status: StatusPassed})
	r.AddResult(CheckResult{Name: "b", Status: StatusSkipped})
	if r.Failed() {
		t.Error("skipped checks should not fail the run")
	}
	r.Error = "browser crashed"
	if !r.Failed() {
		t.Error("run error should fail the run")
	}
}
