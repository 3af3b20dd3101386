package model

import "time"

// Summary is a condensed view of a RunReport for quick review.
type Summary struct {
	// Target is the base URL that was checked.
	Target string `json:"target"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// Total is the number of checks.
	Total int `json:"total"`

	// Passed is the number of passing checks.
	Passed int `json:"passed"`

	// Failed is the number of failing checks.
	Failed int `json:"failed"`

	// Skipped is the number of skipped checks.
	Skipped int `json:"skipped"`

	// Errored is the number of checks that could not be evaluated.
	Errored int `json:"errored"`

	// CriticalCount is the number of critical violations.
	CriticalCount int `json:"critical_count"`

	// SeriousCount is the number of serious violations.
	SeriousCount int `json:"serious_count"`

	// ModerateCount is the number of moderate violations.
	ModerateCount int `json:"moderate_count"`

	// MinorCount is the number of minor violations.
	MinorCount int `json:"minor_count"`

	// Rules counts violations per axe-core rule id.
	Rules map[string]int `json:"rules,omitempty"`
}

// NewSummary computes a Summary from a RunReport.
func NewSummary(r *RunReport) *Summary {
	s := &Summary{
		Target:    r.Target,
		StartedAt: r.StartedAt,
		Duration:  r.Duration(),
		Rules:     make(map[string]int),
	}
	for _, res := range r.ResultsSnapshot() {
		s.Total++
		switch res.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Errored++
		}
		for _, v := range res.Violations {
			s.Rules[v.ID]++
			switch v.Impact {
			case ImpactCritical:
				s.CriticalCount++
			case ImpactSerious:
				s.SeriousCount++
			case ImpactModerate:
				s.ModerateCount++
			case ImpactMinor:
				s.MinorCount++
			case ImpactUnknown:
			}
		}
	}
	return s
}

// TotalViolations returns the number of violations across all impacts.
func (s *Summary) TotalViolations() int {
	return s.CriticalCount + s.SeriousCount + s.ModerateCount + s.MinorCount
}

// HasFailures reports whether any check failed or errored.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || s.Errored > 0
}

// CountForImpact returns the violation count for one impact.
func (s *Summary) CountForImpact(i Impact) int {
	switch i {
	case ImpactCritical:
		return s.CriticalCount
	case ImpactSerious:
		return s.SeriousCount
	case ImpactModerate:
		return s.ModerateCount
	case ImpactMinor:
		return s.MinorCount
	default:
		return 0
	}
}
