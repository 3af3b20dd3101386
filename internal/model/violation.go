package model

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Violation is a single accessibility rule failure reported by axe-core
// for the current page.
type Violation struct {
	// ID is the axe-core rule identifier (e.g. "color-contrast").
	ID string `json:"id"`

	// Impact is the severity of the failure.
	Impact Impact `json:"impact"`

	// Description explains what the rule checks.
	Description string `json:"description"`

	// Help is a short human-readable summary of the rule.
	Help string `json:"help"`

	// HelpURL links to the Deque University page for the rule.
	HelpURL string `json:"helpUrl"`

	// Tags lists the WCAG and best-practice tags attached to the rule.
	Tags []string `json:"tags,omitempty"`

	// Nodes lists the elements that failed the rule.
	Nodes []ViolationNode `json:"nodes,omitempty"`
}

// ViolationNode is one element that failed a rule.
type ViolationNode struct {
	// Target is the CSS selector path axe-core uses to locate the element.
	Target []string `json:"target"`

	// HTML is the outer HTML snippet of the element.
	HTML string `json:"html"`

	// FailureSummary describes how to fix the element.
	FailureSummary string `json:"failureSummary,omitempty"`
}

// Selector returns the node target as one selector string.
func (n ViolationNode) Selector() string {
	return strings.Join(n.Target, " ")
}

// Fingerprint returns a stable identifier for the violation on a route.
// It covers the route, the rule id and the sorted node selectors, so the
// same problem on the same page produces the same fingerprint across runs
// while changes to HTML attributes do not.
func (v Violation) Fingerprint(route Route) string {
	selectors := make([]string, 0, len(v.Nodes))
	for _, n := range v.Nodes {
		selectors = append(selectors, n.Selector())
	}
	sort.Strings(selectors)

	var b strings.Builder
	b.WriteString(route.Normalize().String())
	b.WriteString("\x00")
	b.WriteString(v.ID)
	for _, s := range selectors {
		b.WriteString("\x00")
		b.WriteString(s)
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// CountByImpact counts violations per impact.
func CountByImpact(violations []Violation) map[Impact]int {
	counts := make(map[Impact]int)
	for _, v := range violations {
		counts[v.Impact]++
	}
	return counts
}

// RuleIDs returns the rule ids of the violations in order.
func RuleIDs(violations []Violation) []string {
	ids := make([]string, len(violations))
	for i, v := range violations {
		ids[i] = v.ID
	}
	return ids
}
