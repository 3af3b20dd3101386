package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/session"
)

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the cached login session",
		Long: `a11yscan keeps the cookies of a successful login in an encrypted file
when ` + config.EnvSessionKey + ` is set, so later runs can skip the login form.
The session subcommands manage those files.`,
	}
	cmd.AddCommand(newSessionClearCmd())
	return cmd
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return clearSessions(cmd, sessionDir())
		},
	}
}

// clearSessions removes the sealed sessions in dir.
func clearSessions(cmd *cobra.Command, dir string) error {
	n, err := session.ClearAll(dir)
	if err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached sessions.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached session(s) from %s\n", n, dir)
	return nil
}
