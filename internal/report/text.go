package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/a11yscan/internal/model"
)

// TextWriter outputs reports as plain text for terminal display.
// Status labels are coloured with lipgloss when the output supports it.
type TextWriter struct {
	baseWriter

	// verbose lists passing checks as well as failures.
	verbose bool

	// color enables lipgloss styling of status labels.
	color bool

	pass lipgloss.Style
	fail lipgloss.Style
	skip lipgloss.Style
	bold lipgloss.Style
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose lists every check, not only the ones that did not pass.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// WithColor enables coloured status labels.
func WithColor(color bool) TextWriterOption {
	return func(w *TextWriter) {
		w.color = color
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}

	r := lipgloss.NewRenderer(output)
	w.pass = r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	w.fail = r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	w.skip = r.NewStyle().Foreground(lipgloss.Color("3"))
	w.bold = r.NewStyle().Bold(true)
	return w
}

// Write outputs the report in plain text format.
func (w *TextWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder
	summary := model.NewSummary(report)

	sb.WriteString(w.style(w.bold, "a11yscan: "+report.Target))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration: %s\n", summary.Duration.Round(1e6))
	if len(report.IncludedImpacts) > 0 {
		fmt.Fprintf(&sb, "Impacts:  %s\n", strings.Join(report.IncludedImpacts, ", "))
	}
	if report.SessionEstablished {
		if report.SessionRestored {
			sb.WriteString("Session:  restored from store\n")
		} else {
			sb.WriteString("Session:  logged in\n")
		}
	}
	sb.WriteString("\n")

	for _, res := range report.ResultsSnapshot() {
		if !w.verbose && res.Status == model.StatusPassed {
			continue
		}
		fmt.Fprintf(&sb, "%s %s\n", w.statusLabel(res.Status), res.Name)
		if res.Status == model.StatusPassed {
			continue
		}
		if len(res.Violations) == 0 && res.Message != "" {
			fmt.Fprintf(&sb, "       %s\n", res.Message)
		}
		for _, v := range res.Violations {
			fmt.Fprintf(&sb, "       [%s] %s: %s\n", v.Impact, v.ID, v.Help)
			for _, n := range v.Nodes {
				fmt.Fprintf(&sb, "         - %s\n", n.Selector())
			}
		}
	}

	if report.Error != "" {
		fmt.Fprintf(&sb, "\nError: %s\n", report.Error)
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%d checks: %d passed, %d failed, %d skipped, %d errored\n",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.Errored)
	fmt.Fprintf(&sb, "Violations: %d critical, %d serious, %d moderate, %d minor\n",
		summary.CriticalCount, summary.SeriousCount, summary.ModerateCount, summary.MinorCount)

	if report.Failed() {
		sb.WriteString(w.style(w.fail, "FAILED"))
	} else {
		sb.WriteString(w.style(w.pass, "PASSED"))
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// statusLabel returns a fixed-width label for a check status.
func (w *TextWriter) statusLabel(s model.CheckStatus) string {
	switch s {
	case model.StatusPassed:
		return w.style(w.pass, "PASS ")
	case model.StatusFailed:
		return w.style(w.fail, "FAIL ")
	case model.StatusSkipped:
		return w.style(w.skip, "SKIP ")
	default:
		return w.style(w.fail, "ERROR")
	}
}

func (w *TextWriter) style(s lipgloss.Style, text string) string {
	if !w.color {
		return text
	}
	return s.Render(text)
}
