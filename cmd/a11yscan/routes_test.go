package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/a11yscan/internal/config"
)

// TestRoutesList tests printing the effective route groups.
func TestRoutesList(t *testing.T) {
	t.Parallel()

	manifest := filepath.Join(t.TempDir(), "routes.jsonc")
	if err := os.WriteFile(manifest, []byte(`{
  // audited with a session
  "loggedIn": ["/", "/cases/"],
  "loggedOut": ["/accounts/login/",],
}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "manifest file",
			args: []string{"-r", manifest, "http://localhost:8000"},
			want: []string{"logged in (2 routes, session)", "/cases/", "logged out (1 routes, no session)", "3 routes in 2 groups"},
		},
		{
			name:    "logged out only",
			args:    []string{"-r", manifest, "--logged-out-only"},
			want:    []string{"/accounts/login/", "1 routes in 1 groups"},
			notWant: []string{"/cases/"},
		},
		{
			name: "built-in manifest",
			args: nil,
			want: []string{"logged in", "logged out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRoutesCmd()
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetArgs(append([]string{"list", "--config", writeConfig(t, "")}, tt.args...))
			if err := cmd.Execute(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected %q in output:\n%s", want, buf.String())
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(buf.String(), notWant) {
					t.Errorf("unexpected %q in output:\n%s", notWant, buf.String())
				}
			}
		})
	}

	t.Run("source", func(t *testing.T) {
		t.Parallel()

		cmd := NewRoutesCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"list", "--source"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := config.ParseRouteManifest(buf.Bytes()); err != nil {
			t.Errorf("printed manifest does not parse: %v", err)
		}
	})
}

// newSiteServer serves a small linked site. Pages under /cases/ need the
// session cookie.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	page := func(w http.ResponseWriter, links ...string) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var sb strings.Builder
		sb.WriteString("<html><head><title>Site</title></head><body>")
		for _, l := range links {
			fmt.Fprintf(&sb, `<a href="%s">%s</a>`, l, l)
		}
		sb.WriteString("</body></html>")
		_, _ = w.Write([]byte(sb.String())) //nolint:errcheck // test server
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page(w, "/about/", "/cases/", "/accounts/logout/", "/missing/")
	})
	mux.HandleFunc("/about/", func(w http.ResponseWriter, _ *http.Request) {
		page(w, "/")
	})
	mux.HandleFunc("/cases/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != "abc" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if r.Header.Get("X-Audit") != "1" {
			http.Error(w, "missing header", http.StatusBadRequest)
			return
		}
		page(w, "/cases/1/")
	})
	mux.HandleFunc("/accounts/logout/", func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("logout must not be crawled")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestRoutesDiscover tests route discovery against a test server.
func TestRoutesDiscover(t *testing.T) {
	t.Parallel()

	t.Run("anonymous crawl", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t)
		cmd := NewRoutesCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"discover", "--config", writeConfig(t, ""), srv.URL})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := strings.Fields(buf.String())
		want := []string{"/", "/about/"}
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("got routes %v, want %v", got, want)
		}
	})

	t.Run("session cookie and headers as manifest", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t)
		cfgPath := writeConfig(t, fmt.Sprintf(`targets:
  %q:
    cookie: "sessionid=abc"
    headers:
      X-Audit: "1"
`, srv.URL))

		cmd := NewRoutesCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"discover", "--config", cfgPath, "--manifest", srv.URL})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		m, err := config.ParseRouteManifest(buf.Bytes())
		if err != nil {
			t.Fatalf("printed manifest does not parse: %v\n%s", err, buf.String())
		}
		if len(m.LoggedOut) != 0 {
			t.Errorf("expected every route in the logged-in group, got %v", m.LoggedOut)
		}
		if !strings.Contains(strings.Join(m.LoggedIn, " "), "/cases/") {
			t.Errorf("expected /cases/ to be discovered, got %v", m.LoggedIn)
		}
	})

	t.Run("requires target", func(t *testing.T) {
		t.Parallel()

		cmd := NewRoutesCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"discover"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error")
		}
	})
}

// TestParseCookieHeader tests splitting configured cookies.
func TestParseCookieHeader(t *testing.T) {
	t.Parallel()

	cookies, err := parseCookieHeader("sessionid=abc; csrftoken=xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cookies) != 2 || cookies[0].Name != "sessionid" || cookies[1].Value != "xyz" {
		t.Errorf("unexpected cookies %v", cookies)
	}

	if cookies, err := parseCookieHeader(""); err != nil || cookies != nil {
		t.Errorf("expected nil, nil; got %v, %v", cookies, err)
	}
}
