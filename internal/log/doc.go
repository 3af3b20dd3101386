// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Text output on a terminal and JSON output otherwise
//   - A printf bridge for browser automation libraries
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-CSRFToken)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Django session and CSRF cookies
//   - age identities used to seal the session cache
//
// Even in verbose mode, sensitive values are masked so that logs from CI
// runs can be shared without leaking the audit account.
//
// # Usage
//
//	logger := log.NewCommandLogger(os.Stderr, verbose)
//	logger.Debug("session established",
//	    "cookie", "sessionid=abc123",  // sanitized
//	    "url", "http://localhost:8000/",
//	)
//	slog.SetDefault(logger)
package log
