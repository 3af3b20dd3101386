package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAssertion is matched by every AssertionError with errors.Is.
	ErrAssertion = errors.New("assertion failed")

	// ErrInvalidImpact is returned when an impact name is not recognized.
	ErrInvalidImpact = errors.New("invalid impact")
)

// AssertionError is raised when an expected property, value or condition
// does not hold. It is the only failure kind a check produces itself;
// navigation and browser errors are returned unchanged.
type AssertionError struct {
	// Check is the name of the failing check.
	Check string

	// Route is the route being checked.
	Route Route

	// Expected describes the expected value.
	Expected string

	// Actual describes the observed value.
	Actual string

	// Violations holds the qualifying violations for audit failures.
	Violations []Violation
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Check, e.Route)
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, ": %d accessibility violation(s): %s",
			len(e.Violations), strings.Join(RuleIDs(e.Violations), ", "))
		return b.String()
	}
	fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	return b.String()
}

// Is reports whether target is ErrAssertion.
func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}

// AsAssertionError extracts an AssertionError from err.
func AsAssertionError(err error) (*AssertionError, bool) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
