package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/database"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/report"
)

const noViolationsMessage = "No violations"

// NewCompareCmd creates the compare command.
// This command compares run results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [target-url]",
		Short: "Compare run results with historical data",
		Long: `Compare displays differences between the latest and an earlier run.

This command retrieves stored runs from the database and shows:
- Violations that appeared since the earlier run
- Violations that were resolved
- Changes in the violation count per impact

The comparison requires at least two runs in the database for the target.
Use 'a11yscan run' to check a target and save results.

Examples:
  # Compare the latest two runs
  a11yscan compare https://staging.example.com

  # List the run history of a target
  a11yscan compare --list https://staging.example.com

  # Compare with a specific run by ID
  a11yscan compare --with-run-id 5 https://staging.example.com

  # Compare with the first run since a date
  a11yscan compare --since 2026-01-01 https://staging.example.com

  # List every target in the database
  a11yscan compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all targets in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("with-run-id", "since")

	return cmd
}

// compareOptions selects the earlier run and the output format.
type compareOptions struct {
	withRunID int64
	since     string
	json      bool
	markdown  bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target URL is required (use --list-targets to see stored targets)")
		}
		if _, err := config.ParseTarget(args[0]); err != nil {
			return err
		}
		target = config.NormalizeTarget(args[0])
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if listTargets {
		return listStoredTargets(ctx, db, out)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, db, out, target)
	}

	var opts compareOptions
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}

	return runComparison(ctx, db, out, target, opts)
}

// listStoredTargets lists all targets that have runs in the database.
func listStoredTargets(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No targets found in the database.")
		fmt.Fprintln(out, "\nUse 'a11yscan run <target-url>' to check a target.")
		return nil
	}

	fmt.Fprintf(out, "Targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(out, "  • %s\n", t)
	}
	fmt.Fprintln(out, "\nUse 'a11yscan compare --list <target-url>' to see the run history of a target.")
	return nil
}

// listRunHistory lists all stored runs of target.
func listRunHistory(ctx context.Context, db *database.HistoryDB, out io.Writer, target string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'a11yscan run' to check this target.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %s\n", "ID", "Date", "Result", "Violations")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range runs {
		result := "pass"
		if meta.Failed {
			result = "FAIL"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6s  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			result,
			formatViolationSummary(meta.Summary.Violations),
		)
	}

	fmt.Fprintln(out, "\nUse 'a11yscan compare <target-url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'a11yscan compare --with-run-id <id> <target-url>' to compare with a specific run.")
	return nil
}

// formatViolationSummary formats per-impact counts as "C:1 S:2".
func formatViolationSummary(counts map[string]int) string {
	var parts []string
	for _, impact := range model.AllImpacts() {
		if n := counts[impact.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", strings.ToUpper(impact.String()[:1]), n))
		}
	}
	if len(parts) == 0 {
		return noViolationsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest run of target with an earlier one.
func runComparison(ctx context.Context, db *database.HistoryDB, out io.Writer, target string, opts compareOptions) error {
	reports, err := db.GetRunHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no run history found for %s", target)
	}
	if len(reports) < 2 && opts.withRunID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	previous, err := selectPreviousRun(ctx, db, reports, target, opts)
	if err != nil {
		return err
	}

	c := report.Compare(previous, current)
	switch {
	case opts.json:
		return report.WriteComparisonJSON(out, c)
	case opts.markdown:
		return report.WriteComparisonMarkdown(out, c)
	default:
		return report.WriteComparisonText(out, c)
	}
}

// selectPreviousRun picks the run the latest one is compared against.
// reports is sorted newest first.
func selectPreviousRun(ctx context.Context, db *database.HistoryDB, reports []*model.RunReport, target string, opts compareOptions) (*model.RunReport, error) {
	switch {
	case opts.withRunID > 0:
		r, err := db.GetRunReportByID(ctx, opts.withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if r == nil {
			return nil, fmt.Errorf("run with ID %d not found", opts.withRunID)
		}
		if r.Target != target {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, r.Target, target)
		}
		return r, nil

	case opts.since != "":
		since, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Oldest run at or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].StartedAt.Before(since) {
				if i == 0 {
					return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
				}
				return reports[i], nil
			}
		}
		return nil, fmt.Errorf("no runs found since %s", opts.since)

	default:
		return reports[1], nil
	}
}
