package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/database"
)

// NewPruneCmd creates the prune command.
func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune [target-url]",
		Short: "Delete old runs from the history database",
		Long: `Prune deletes stored runs that started before a date. Without a target
the runs of every target are considered.

Examples:
  a11yscan prune --before 2026-01-01
  a11yscan prune --before 2026-01-01 https://staging.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPruneCmd,
	}
	cmd.Flags().String("before", "", "Delete runs that started before this date (format: YYYY-MM-DD)")
	return cmd
}

func runPruneCmd(cmd *cobra.Command, args []string) error {
	before, err := cmd.Flags().GetString("before")
	if err != nil {
		return err
	}
	cutoff, err := parseCutoff(before)
	if err != nil {
		return err
	}

	var target string
	if len(args) > 0 {
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
	return pruneRuns(ctx, db, cmd.OutOrStdout(), target, cutoff)
}

// parseCutoff parses a --before date in local time.
func parseCutoff(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("--before is required")
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
	}
	return t, nil
}

// pruneRuns deletes runs of target (all targets when empty) before cutoff.
func pruneRuns(ctx context.Context, db *database.HistoryDB, out io.Writer, target string, cutoff time.Time) error {
	n, err := db.DeleteRunsBefore(ctx, target, cutoff)
	if err != nil {
		return err
	}
	scope := "all targets"
	if target != "" {
		scope = target
	}
	fmt.Fprintf(out, "Deleted %d run(s) of %s started before %s\n", n, scope, cutoff.Format("2006-01-02"))
	return nil
}
