package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/log"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
)

// openOutput returns the report destination: the file at path, or stdout
// when path is empty. The returned func closes the file.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain page HTML from logged-in routes.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // written data was already flushed by Write
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(out, currentBuild().Version, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	case cfg.HTMLReport:
		return report.NewHTMLWriter(out)
	case cfg.JUnitReport:
		return report.NewJUnitWriter(out)
	default:
		return report.NewTextWriter(out,
			report.WithVerbose(cfg.Verbose),
			report.WithColor(colorEnabled(out)),
		)
	}
}

// colorEnabled reports whether out is a terminal that accepts ANSI colors.
func colorEnabled(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && log.IsTerminal(f)
}

// outputReport writes one run report in the configured format.
func outputReport(cfg *config.Config, r *model.RunReport, out io.Writer) error {
	_, err := newReportWriter(cfg, out).Write(r)
	return err
}
