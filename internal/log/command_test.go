package log

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// TestPrintf tests the printf bridge.
func TestPrintf(t *testing.T) {
	t.Parallel()

	t.Run("forwards formatted detail", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logf := Printf(NewSecureLogger(&buf, true), slog.LevelDebug)
		logf("navigated to %s", "http://localhost:8000/cases/")

		if !strings.Contains(buf.String(), "navigated to http://localhost:8000/cases/") {
			t.Errorf("expected detail in output: %s", buf.String())
		}
	})

	t.Run("masks cookie frames", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logf := Printf(NewSecureLogger(&buf, true), slog.LevelDebug)
		logf("-> %s", `{"method":"Network.setCookies","params":{"cookies":[{"name":"sessionid","value":"s3cr3t"}]}}`)

		if strings.Contains(buf.String(), "s3cr3t") {
			t.Errorf("cookie value leaked: %s", buf.String())
		}
		if !strings.Contains(buf.String(), MaskValue) {
			t.Errorf("expected mask in output: %s", buf.String())
		}
	})

	t.Run("masks typed input", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logf := Printf(NewSecureLogger(&buf, true), slog.LevelDebug)
		logf(`{"method":"Input.insertText","params":{"text":"hunter2"}}`)

		if strings.Contains(buf.String(), "hunter2") {
			t.Errorf("typed input leaked: %s", buf.String())
		}
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logf := Printf(NewSecureLogger(&buf, false), slog.LevelDebug)
		logf("noise")

		if buf.Len() != 0 {
			t.Errorf("expected no output at warn level, got %s", buf.String())
		}
	})

	t.Run("nil logger uses default", func(_ *testing.T) {
		logf := Printf(nil, slog.LevelDebug)
		logf("does not panic")
	})
}

// TestIsTerminal tests terminal detection on non-terminal files.
func TestIsTerminal(t *testing.T) {
	t.Parallel()

	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}

	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if IsTerminal(f) {
		t.Error("regular file is not a terminal")
	}

	logger := NewCommandLogger(f, true)
	logger.Info("hello", "password", "secret")
	if err := f.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "{") {
		t.Errorf("expected JSON output for a non-terminal, got %s", data)
	}
	if strings.Contains(string(data), `"secret"`) {
		t.Errorf("password leaked: %s", data)
	}
}
