package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/a11yscan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for pull request comments and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// impactIcons decorates impact labels in tables and headings.
var impactIcons = map[model.Impact]string{
	model.ImpactCritical: "🔴",
	model.ImpactSerious:  "🟠",
	model.ImpactModerate: "🟡",
	model.ImpactMinor:    "🔵",
}

// impactLabel returns the display label of an impact, e.g. "Critical".
func impactLabel(i model.Impact) string {
	return cases.Title(language.English).String(i.String())
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)
	results := report.ResultsSnapshot()

	w.writeHeader(md, report, summary)
	w.writeSummary(md, summary)
	w.writeChecks(md, results)
	w.writeViolations(md, results)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport, summary *model.Summary) {
	md.H1("Accessibility Report")
	md.PlainText("")

	impacts := "-"
	if len(report.IncludedImpacts) > 0 {
		impacts = strings.Join(report.IncludedImpacts, ", ")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Run Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(1e6).String()},
			{"Impacts", impacts},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func statusText(report *model.RunReport) string {
	switch {
	case report.Error != "":
		return "❌ Error - " + report.Error
	case report.Failed():
		return "❌ Failed"
	default:
		return "✅ Passed"
	}
}

// writeSummary writes the check and impact summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Checks", "Count"},
		Rows: [][]string{
			{"✅ Passed", strconv.Itoa(summary.Passed)},
			{"❌ Failed", strconv.Itoa(summary.Failed)},
			{"⏭️ Skipped", strconv.Itoa(summary.Skipped)},
			{"⚠️ Errored", strconv.Itoa(summary.Errored)},
			{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"},
		},
	})
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllImpacts())+1)
	for _, impact := range model.AllImpacts() {
		rows = append(rows, []string{
			impactIcons[impact] + " " + impactLabel(impact),
			strconv.Itoa(summary.CountForImpact(impact)),
		})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(summary.TotalViolations()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Impact", "Violations"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.TotalViolations() > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for the impact distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Violation Impact Distribution"),
		piechart.WithShowData(true),
	)

	for _, impact := range model.AllImpacts() {
		if n := summary.CountForImpact(impact); n > 0 {
			chart.LabelAndIntValue(impactLabel(impact), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.CriticalCount > 0:
		md.Cautionf(
			"%d critical violation(s) block some users from the application entirely.",
			summary.CriticalCount,
		)
	case summary.SeriousCount > 0:
		md.Warningf(
			"%d serious violation(s) should be fixed before release.",
			summary.SeriousCount,
		)
	case summary.Errored > 0:
		md.Importantf(
			"%d check(s) could not complete. See the messages below.",
			summary.Errored,
		)
	case summary.HasFailures():
		md.Note("Some checks failed without accessibility violations.")
	default:
		md.Tip("All checks passed.")
	}
	md.PlainText("")
}

// writeChecks writes a table of every check that was run.
func (w *MarkdownWriter) writeChecks(md *markdown.Markdown, results []model.CheckResult) {
	md.H2("Checks")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No checks were run.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, res := range results {
		group := res.Group
		if group == "" {
			group = "-"
		}
		message := res.Message
		if message == "" {
			message = "-"
		}
		rows[i] = []string{
			statusIcon(res.Status),
			res.Name,
			group,
			truncateString(message, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Check", "Group", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusIcon returns an icon for a check status.
func statusIcon(s model.CheckStatus) string {
	switch s {
	case model.StatusPassed:
		return "✅"
	case model.StatusFailed:
		return "❌"
	case model.StatusSkipped:
		return "⏭️"
	default:
		return "⚠️"
	}
}

// writeViolations writes every violation grouped by impact.
func (w *MarkdownWriter) writeViolations(md *markdown.Markdown, results []model.CheckResult) {
	md.H2("Violations")
	md.PlainText("")

	byImpact := make(map[model.Impact][]model.RouteViolation)
	for _, res := range results {
		for _, v := range res.Violations {
			byImpact[v.Impact] = append(byImpact[v.Impact], model.RouteViolation{Route: res.Route, Violation: v})
		}
	}
	if len(byImpact) == 0 {
		md.PlainText("No accessibility violations detected.")
		md.PlainText("")
		return
	}

	for _, impact := range append(model.AllImpacts(), model.ImpactUnknown) {
		violations := byImpact[impact]
		if len(violations) == 0 {
			continue
		}

		md.PlainText(strings.TrimSpace("### " + impactIcons[impact] + " " + impactLabel(impact)))
		md.PlainText("")

		rows := make([][]string, len(violations))
		for i, rv := range violations {
			rows[i] = []string{
				"`" + rv.Route.String() + "`",
				rv.Violation.ID,
				strconv.Itoa(len(rv.Violation.Nodes)),
				truncateString(rv.Violation.Help, 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Route", "Rule", "Nodes", "Help"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, rv := range violations {
			md.Details(fmt.Sprintf("%s on %s", rv.Violation.ID, rv.Route), violationDetails(rv.Violation))
		}
		md.PlainText("")
	}
}

// violationDetails renders the description and affected nodes of a violation.
func violationDetails(v model.Violation) string {
	var sb strings.Builder
	sb.WriteString(v.Description)
	if v.HelpURL != "" {
		fmt.Fprintf(&sb, "\n\n%s", v.HelpURL)
	}
	for _, n := range v.Nodes {
		fmt.Fprintf(&sb, "\n\n- `%s`", n.Selector())
		if n.FailureSummary != "" {
			fmt.Fprintf(&sb, ": %s", strings.ReplaceAll(n.FailureSummary, "\n", " "))
		}
	}
	return sb.String()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [a11yscan](https://github.com/nao1215/a11yscan) using axe-core*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
