package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/a11yscan/internal/model"
)

// Directions of change between two runs.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// Comparison holds the result of comparing two run reports of one target.
type Comparison struct {
	// Target is the base URL both runs checked.
	Target string `json:"target"`

	// Previous contains counts of the older run.
	Previous RunCounts `json:"previous"`

	// Current contains counts of the newer run.
	Current RunCounts `json:"current"`

	// New contains violations present only in the current run.
	New []model.RouteViolation `json:"new,omitempty"`

	// Resolved contains violations present only in the previous run.
	Resolved []model.RouteViolation `json:"resolved,omitempty"`

	// UnchangedCount is the number of violations present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`
}

// RunCounts contains the counts of one run used for comparison display.
type RunCounts struct {
	StartedAt     time.Time `json:"started_at"`
	Failed        int       `json:"failed"`
	CriticalCount int       `json:"critical_count"`
	SeriousCount  int       `json:"serious_count"`
	ModerateCount int       `json:"moderate_count"`
	MinorCount    int       `json:"minor_count"`
}

func newRunCounts(r *model.RunReport) RunCounts {
	s := model.NewSummary(r)
	return RunCounts{
		StartedAt:     r.StartedAt,
		Failed:        s.Failed + s.Errored,
		CriticalCount: s.CriticalCount,
		SeriousCount:  s.SeriousCount,
		ModerateCount: s.ModerateCount,
		MinorCount:    s.MinorCount,
	}
}

// Count returns the number of violations with the given impact.
func (c RunCounts) Count(i model.Impact) int {
	switch i {
	case model.ImpactCritical:
		return c.CriticalCount
	case model.ImpactSerious:
		return c.SeriousCount
	case model.ImpactModerate:
		return c.ModerateCount
	case model.ImpactMinor:
		return c.MinorCount
	default:
		return 0
	}
}

// Total returns the number of violations of every impact.
func (c RunCounts) Total() int {
	return c.CriticalCount + c.SeriousCount + c.ModerateCount + c.MinorCount
}

// score weights violations by impact.
func (c RunCounts) score() int {
	return c.CriticalCount*100 + c.SeriousCount*50 + c.ModerateCount*10 + c.MinorCount
}

// Compare matches violations of two runs by fingerprint.
func Compare(previous, current *model.RunReport) *Comparison {
	c := &Comparison{
		Target:   current.Target,
		Previous: newRunCounts(previous),
		Current:  newRunCounts(current),
	}

	prev := previous.Violations()
	cur := current.Violations()

	for key, v := range cur {
		if _, ok := prev[key]; !ok {
			c.New = append(c.New, v)
		}
	}
	for key, v := range prev {
		if _, ok := cur[key]; ok {
			c.UnchangedCount++
			continue
		}
		c.Resolved = append(c.Resolved, v)
	}
	sortRouteViolations(c.New)
	sortRouteViolations(c.Resolved)

	switch ps, cs := c.Previous.score(), c.Current.score(); {
	case cs < ps:
		c.Direction = DirectionImproved
	case cs > ps:
		c.Direction = DirectionWorsened
	default:
		c.Direction = DirectionUnchanged
	}
	return c
}

// sortRouteViolations orders by impact, most severe first, then route and rule.
func sortRouteViolations(vs []model.RouteViolation) {
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Violation.Impact != b.Violation.Impact {
			return a.Violation.Impact > b.Violation.Impact
		}
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		return a.Violation.ID < b.Violation.ID
	})
}

// WriteComparisonJSON outputs the comparison as indented JSON.
func WriteComparisonJSON(w io.Writer, c *Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// WriteComparisonText outputs the comparison in human-readable text.
func WriteComparisonText(w io.Writer, c *Comparison) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s\n", c.Target)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "\nStatus: %s\n", formatDirection(c.Direction))
	fmt.Fprintf(&sb, "\nPrevious run: %s\n", c.Previous.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current run:  %s\n", c.Current.StartedAt.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nViolations:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Impact", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, impact := range model.AllImpacts() {
		p, n := c.Previous.Count(impact), c.Current.Count(impact)
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", impactLabel(impact), p, n, FormatDelta(n-p))
	}
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		c.Previous.Total(), c.Current.Total(), FormatDelta(c.Current.Total()-c.Previous.Total()))

	if len(c.New) > 0 {
		fmt.Fprintf(&sb, "\nNew Violations (%d):\n", len(c.New))
		for _, rv := range c.New {
			fmt.Fprintf(&sb, "  [+] [%s] %s on %s\n", rv.Violation.Impact, rv.Violation.ID, rv.Route)
		}
	}
	if len(c.Resolved) > 0 {
		fmt.Fprintf(&sb, "\nResolved Violations (%d):\n", len(c.Resolved))
		for _, rv := range c.Resolved {
			fmt.Fprintf(&sb, "  [-] [%s] %s on %s\n", rv.Violation.Impact, rv.Violation.ID, rv.Route)
		}
	}
	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d violations\n", c.UnchangedCount)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteComparisonMarkdown outputs the comparison in Markdown format.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Run Comparison: " + c.Target)
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatDirection(c.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		c.Previous.StartedAt.Format("2006-01-02 15:04"),
		c.Current.StartedAt.Format("2006-01-02 15:04"),
		"-",
	}}
	for _, impact := range model.AllImpacts() {
		p, n := c.Previous.Count(impact), c.Current.Count(impact)
		rows = append(rows, []string{impactLabel(impact), strconv.Itoa(p), strconv.Itoa(n), FormatDelta(n - p)})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(c.Previous.Total()) + "**",
		"**" + strconv.Itoa(c.Current.Total()) + "**",
		"**" + FormatDelta(c.Current.Total()-c.Previous.Total()) + "**",
	})
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(c.New) > 0 {
		md.H2(fmt.Sprintf("New Violations (%d)", len(c.New)))
		md.PlainText("")
		md.BulletList(routeViolationLines(c.New, "")...)
		md.PlainText("")
	}
	if len(c.Resolved) > 0 {
		md.H2(fmt.Sprintf("Resolved Violations (%d)", len(c.Resolved)))
		md.PlainText("")
		md.BulletList(routeViolationLines(c.Resolved, "~~")...)
		md.PlainText("")
	}
	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d violations unchanged*", c.UnchangedCount)
	}

	return md.Build()
}

func routeViolationLines(vs []model.RouteViolation, wrap string) []string {
	lines := make([]string, len(vs))
	for i, rv := range vs {
		lines[i] = fmt.Sprintf("%s**[%s]** %s on `%s`%s",
			wrap, impactLabel(rv.Violation.Impact), rv.Violation.ID, rv.Route, wrap)
	}
	return lines
}

// formatDirection formats the change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case DirectionImproved:
		return "IMPROVED (fewer violations)"
	case DirectionWorsened:
		return "WORSENED (more violations)"
	default:
		return "UNCHANGED"
	}
}

// FormatDelta formats a numeric delta with sign for display.
func FormatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
