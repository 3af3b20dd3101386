package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/model"
)

// impactValue is a repeatable --impact flag. Each occurrence may hold a
// comma-separated list; names are validated as they are parsed.
type impactValue struct {
	names   []string
	changed bool
}

var _ pflag.Value = (*impactValue)(nil)

// String returns the impacts joined by commas.
func (v *impactValue) String() string {
	return strings.Join(v.names, ",")
}

// Set parses one occurrence of the flag. The first occurrence replaces the
// default value, later ones append.
func (v *impactValue) Set(s string) error {
	if !v.changed {
		v.names = nil
		v.changed = true
	}
	for part := range strings.SplitSeq(s, ",") {
		impact, err := model.ParseImpact(part)
		if err != nil {
			return err
		}
		if !slices.Contains(v.names, impact.String()) {
			v.names = append(v.names, impact.String())
		}
	}
	return nil
}

// Type is shown in the flag usage.
func (v *impactValue) Type() string {
	return "impact"
}

// Values returns the parsed names, or nil when the flag was not given.
func (v *impactValue) Values() []string {
	if !v.changed {
		return nil
	}
	return slices.Clone(v.names)
}

// passwordSource reads the login password.
type passwordSource struct {
	// file is a path given with --password-file.
	file string

	// getenv and stdin are replaceable in tests.
	getenv func(string) string
	stdin  *os.File
	prompt io.Writer
}

func newPasswordSource(file string) *passwordSource {
	return &passwordSource{
		file:   file,
		getenv: os.Getenv,
		stdin:  os.Stdin,
		prompt: os.Stderr,
	}
}

// Read returns the password from --password-file, then A11YSCAN_PASSWORD,
// then an interactive prompt when stdin is a terminal. An empty result is
// not an error; routes that need a session will fail with ErrNoCredentials.
func (p *passwordSource) Read(username string) (string, error) {
	if p.file != "" {
		data, err := os.ReadFile(p.file) //nolint:gosec // User-provided password file is intentional
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	if pw := p.getenv(config.EnvPassword); pw != "" {
		return pw, nil
	}

	if username == "" || p.stdin == nil || !term.IsTerminal(int(p.stdin.Fd())) { //nolint:gosec // file descriptors fit in int
		return "", nil
	}

	fmt.Fprintf(p.prompt, "Password for %s: ", username)
	pw, err := term.ReadPassword(int(p.stdin.Fd())) //nolint:gosec // file descriptors fit in int
	fmt.Fprintln(p.prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
