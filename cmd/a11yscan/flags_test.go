package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/a11yscan/internal/config"
	"github.com/nao1215/a11yscan/internal/model"
)

// TestImpactValue tests the repeatable --impact flag.
func TestImpactValue(t *testing.T) {
	t.Parallel()

	t.Run("default is shown but not returned", func(t *testing.T) {
		t.Parallel()
		v := &impactValue{names: model.DefaultIncludedImpacts}
		if v.String() != "critical,serious" {
			t.Errorf("unexpected default %q", v.String())
		}
		if v.Values() != nil {
			t.Errorf("expected nil values, got %v", v.Values())
		}
		if v.Type() != "impact" {
			t.Errorf("unexpected type %q", v.Type())
		}
	})

	t.Run("first set replaces the default", func(t *testing.T) {
		t.Parallel()
		v := &impactValue{names: model.DefaultIncludedImpacts}
		if err := v.Set("minor"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := v.Set("moderate,minor"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := v.Values()
		if len(got) != 2 || got[0] != "minor" || got[1] != "moderate" {
			t.Errorf("unexpected values %v", got)
		}
		if len(model.DefaultIncludedImpacts) != 2 || model.DefaultIncludedImpacts[0] != "critical" {
			t.Error("default impacts were modified")
		}
	})

	t.Run("rejects unknown impact", func(t *testing.T) {
		t.Parallel()
		v := &impactValue{}
		if err := v.Set("critical,blocker"); err == nil {
			t.Error("expected error")
		}
	})
}

// TestPasswordSource tests the password lookup order.
func TestPasswordSource(t *testing.T) {
	t.Parallel()

	env := func(values map[string]string) func(string) string {
		return func(key string) string { return values[key] }
	}

	t.Run("file wins over environment", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "password")
		if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}
		p := &passwordSource{file: path, getenv: env(map[string]string{config.EnvPassword: "from-env"})}
		got, err := p.Read("auditor")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "from-file" {
			t.Errorf("got %q, want from-file", got)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Parallel()
		p := &passwordSource{file: filepath.Join(t.TempDir(), "missing"), getenv: env(nil)}
		if _, err := p.Read("auditor"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Parallel()
		p := &passwordSource{getenv: env(map[string]string{config.EnvPassword: "from-env"})}
		got, err := p.Read("auditor")
		if err != nil || got != "from-env" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("no terminal yields empty password", func(t *testing.T) {
		t.Parallel()
		p := &passwordSource{getenv: env(nil)}
		got, err := p.Read("auditor")
		if err != nil || got != "" {
			t.Errorf("got %q, %v", got, err)
		}
	})
}
