package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errChecksFailed is returned when a run finished with failing checks.
// The checks themselves were already reported, so only the exit code matters.
var errChecksFailed = errors.New("accessibility checks failed")

// NewRootCmd creates the root command for a11yscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "a11yscan",
		Short: "Browser-driven accessibility checks for web applications",
		Long: `a11yscan visits the pages of a web application in headless Chrome and
audits each of them with axe-core.

Routes are grouped into logged-in and logged-out groups. a11yscan logs in
once per run for the logged-in group and reuses the session for every route.
Violations with an included impact (critical and serious by default) fail
the run.`,
		Version:       currentBuild().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewRoutesCmd())
	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
