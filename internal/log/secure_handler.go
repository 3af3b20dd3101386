package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// secretKeys are attribute keys whose values are always masked, compared
// case-insensitively. They cover the login form, the session cookies of the
// application under test and the session cache passphrase.
var secretKeys = map[string]struct{}{
	"cookie":              {},
	"cookies":             {},
	"set-cookie":          {},
	"authorization":       {},
	"proxy-authorization": {},
	"sessionid":           {},
	"session_id":          {},
	"session_key":         {},
	"csrftoken":           {},
	"csrfmiddlewaretoken": {},
	"identity":            {},
}

// secretKeyParts mask any key that contains one of them, such as
// "login_password" or "X-CSRFToken".
var secretKeyParts = []string{
	"password",
	"passwd",
	"passphrase",
	"secret",
	"token",
	"auth",
	"credential",
	"csrf",
	"private",
}

// secretValues match values that are secrets whatever their key.
// Hex digests such as violation fingerprints are not masked.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`),
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`AGE-SECRET-KEY-1[0-9A-Z]+`),
	regexp.MustCompile(`(?i)-----BEGIN[A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(^|;\s*)(sessionid|csrftoken)=`),
}

// cdpFramePattern matches DevTools protocol frames that may carry cookies
// or typed form input. Such frames are masked as a whole.
var cdpFramePattern = regexp.MustCompile(`(?i)cookie|Input\.(insertText|dispatchKeyEvent)|Runtime\.callFunctionOn`)

// isSecretKey reports whether values logged under key must be masked.
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	if _, ok := secretKeys[k]; ok {
		return true
	}
	for _, part := range secretKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// isSecretValue reports whether s looks like a credential.
func isSecretValue(s string) bool {
	for _, re := range secretValues {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// redact returns a with secret values masked. Groups are walked and
// LogValuers are resolved first, so a Credentials value is checked on what
// it actually logs.
func redact(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		members := v.Group()
		out := make([]slog.Attr, len(members))
		for i, m := range members {
			out[i] = redact(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSecretKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if v.Kind() == slog.KindString && isSecretValue(v.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// SecureHandler masks credentials and session cookies before records reach
// the wrapped handler.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next wraps the default handler.
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redact(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(masked)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// levelFor maps the --verbose flag to a minimum level.
func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger returns a text logger writing to w that masks secrets.
// Debug output is enabled when verbose is true; otherwise only warnings
// and errors are written.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, opts)))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output, for CI logs.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, opts)))
}
