package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the secure logger used by CLI commands.
// When f is a terminal the output is human-readable text; when it is piped
// or redirected (CI, scripts) the output is JSON.
func NewCommandLogger(f *os.File, verbose bool) *slog.Logger {
	if IsTerminal(f) {
		return NewSecureLogger(f, verbose)
	}
	return NewSecureJSONLogger(f, verbose)
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// Printf returns a printf-style function that forwards to logger at level.
// It adapts slog to libraries that take a logf callback, such as chromedp.
// Formatted lines are logged under the "detail" attribute; lines that look
// like DevTools frames carrying cookies or typed input are masked.
func Printf(logger *slog.Logger, level slog.Level) func(string, ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(format string, args ...any) {
		ctx := context.Background()
		if !logger.Enabled(ctx, level) {
			return
		}
		detail := fmt.Sprintf(format, args...)
		if cdpFramePattern.MatchString(detail) {
			detail = MaskValue
		}
		logger.Log(ctx, level, "browser", slog.String("detail", detail))
	}
}
