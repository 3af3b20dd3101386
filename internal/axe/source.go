package axe

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// maxScriptSize bounds a downloaded script. axe.min.js is about 550KB.
const maxScriptSize = 8 * 1024 * 1024

// ErrInvalidScript is returned when the loaded script does not look like axe-core.
var ErrInvalidScript = errors.New("script does not look like axe-core")

// Source locates the axe-core script.
type Source struct {
	// Path is a local axe.min.js. When set, URL and CacheDir are ignored.
	Path string

	// URL is downloaded when Path is empty and no cached copy exists.
	URL string

	// CacheDir holds downloaded scripts, one file per URL.
	CacheDir string

	// Client performs the download. Defaults to a client with a 60s timeout.
	Client *http.Client

	// Logger receives progress messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// Load returns the script text.
func (s *Source) Load(ctx context.Context) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if s.Path != "" {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read axe script: %w", err)
		}
		if err := validateScript(data); err != nil {
			return "", fmt.Errorf("%s: %w", s.Path, err)
		}
		return string(data), nil
	}

	if s.URL == "" {
		return "", errors.New("no axe script path or URL configured")
	}

	cachePath := s.cachePath()
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil && validateScript(data) == nil {
			logger.Debug("using cached axe script", "path", cachePath)
			return string(data), nil
		}
	}

	logger.Info("downloading axe-core", "url", s.URL)
	data, err := s.download(ctx)
	if err != nil {
		return "", err
	}

	if cachePath != "" {
		if err := writeFileAtomic(cachePath, data); err != nil {
			// The script is usable without the cache.
			logger.Warn("failed to cache axe script", "path", cachePath, "error", err)
		}
	}
	return string(data), nil
}

// cachePath names the cache file by a hash of the URL so that changing the
// configured version downloads again.
func (s *Source) cachePath() string {
	if s.CacheDir == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(s.URL))
	return filepath.Join(s.CacheDir, "axe-"+hex.EncodeToString(sum[:8])+".min.js")
}

func (s *Source) download(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download axe script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download axe script: %s returned %s", s.URL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read axe script: %w", err)
	}
	if len(data) > maxScriptSize {
		return nil, fmt.Errorf("axe script exceeds %d bytes", maxScriptSize)
	}
	if err := validateScript(data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.URL, err)
	}
	return data, nil
}

func validateScript(data []byte) error {
	if !bytes.Contains(data, []byte("axe")) {
		return ErrInvalidScript
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".axe-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
