package model

import (
	"fmt"
	"slices"
	"strings"
)

// Impact is the severity axe-core assigns to a rule violation.
// Values are ordered so that comparisons reflect increasing severity.
type Impact int

const (
	// ImpactUnknown is used when axe-core reports no impact for a rule.
	// This happens for rules that only produce "incomplete" results.
	ImpactUnknown Impact = iota

	// ImpactMinor indicates an annoyance that users can work around.
	ImpactMinor

	// ImpactModerate indicates some difficulty for users of assistive technology.
	ImpactModerate

	// ImpactSerious indicates a barrier that makes content hard to use.
	ImpactSerious

	// ImpactCritical indicates content that is unusable for some users.
	ImpactCritical
)

// String returns the axe-core name of the impact.
func (i Impact) String() string {
	switch i {
	case ImpactMinor:
		return "minor"
	case ImpactModerate:
		return "moderate"
	case ImpactSerious:
		return "serious"
	case ImpactCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so impacts serialize as
// their axe-core names in JSON and YAML.
func (i Impact) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unknown names decode to ImpactUnknown rather than failing, because
// axe-core emits null impacts for some rules.
func (i *Impact) UnmarshalText(text []byte) error {
	parsed, err := ParseImpact(string(text))
	if err != nil {
		*i = ImpactUnknown
		return nil //nolint:nilerr // unknown impacts are tolerated in results
	}
	*i = parsed
	return nil
}

// ParseImpact converts an axe-core impact name into an Impact.
// Matching is case-insensitive.
func ParseImpact(s string) (Impact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minor":
		return ImpactMinor, nil
	case "moderate":
		return ImpactModerate, nil
	case "serious":
		return ImpactSerious, nil
	case "critical":
		return ImpactCritical, nil
	default:
		return ImpactUnknown, fmt.Errorf("%w: %q", ErrInvalidImpact, s)
	}
}

// AllImpacts returns every known impact, most severe first.
func AllImpacts() []Impact {
	return []Impact{ImpactCritical, ImpactSerious, ImpactModerate, ImpactMinor}
}

// ImpactFilter restricts audit findings to a set of impacts.
// It corresponds to the includedImpacts option of the audit configuration.
// The zero value includes nothing; use NewImpactFilter or DefaultImpactFilter.
type ImpactFilter struct {
	included map[Impact]bool
}

// DefaultIncludedImpacts is the impact set applied when none is configured.
var DefaultIncludedImpacts = []string{"critical", "serious"}

// NewImpactFilter builds a filter from impact names.
// An error is returned if any name is not a known impact.
func NewImpactFilter(names []string) (ImpactFilter, error) {
	f := ImpactFilter{included: make(map[Impact]bool, len(names))}
	for _, name := range names {
		impact, err := ParseImpact(name)
		if err != nil {
			return ImpactFilter{}, err
		}
		f.included[impact] = true
	}
	return f, nil
}

// DefaultImpactFilter returns the critical+serious filter.
func DefaultImpactFilter() ImpactFilter {
	f, _ := NewImpactFilter(DefaultIncludedImpacts) //nolint:errcheck // constant input
	return f
}

// Includes reports whether the impact passes the filter.
func (f ImpactFilter) Includes(i Impact) bool {
	return f.included[i]
}

// IsEmpty reports whether the filter includes no impacts.
func (f ImpactFilter) IsEmpty() bool {
	return len(f.included) == 0
}

// Impacts returns the included impacts, most severe first.
func (f ImpactFilter) Impacts() []Impact {
	var out []Impact
	for _, i := range AllImpacts() {
		if f.included[i] {
			out = append(out, i)
		}
	}
	return out
}

// Names returns the included impact names, most severe first.
func (f ImpactFilter) Names() []string {
	impacts := f.Impacts()
	names := make([]string, len(impacts))
	for i, impact := range impacts {
		names[i] = impact.String()
	}
	return names
}

// Filter returns the violations whose impact is included.
// The input order is preserved.
func (f ImpactFilter) Filter(violations []Violation) []Violation {
	out := make([]Violation, 0, len(violations))
	for _, v := range violations {
		if f.Includes(v.Impact) {
			out = append(out, v)
		}
	}
	return slices.Clip(out)
}

// String returns the comma separated impact names.
func (f ImpactFilter) String() string {
	return strings.Join(f.Names(), ",")
}
