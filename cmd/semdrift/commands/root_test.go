package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the CLI with args and returns everything written to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeTestConfig writes a minimal config file rooted in dir and returns its
// path. The experiment output directory lives under dir too, so every test
// run is fully isolated.
func writeTestConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`log_level: error
experiment:
  error_rates: [0, 25]
  seed: 7
  output_dir: %s
`, filepath.Join(dir, "experiments"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content+extra), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "semdrift" {
		t.Errorf("Use = %q, want %q", cmd.Use, "semdrift")
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	want := []string{"prepare", "run", "analyze", "report", "archive", "info", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	cmd := NewRootCmd()

	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"config", "c", "config.yaml"},
		{"verbose", "v", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flagName)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestRootCmd_MissingConfig(t *testing.T) {
	_, err := execute(t, "info", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want mention of missing file", err)
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-15")
	defer SetVersion("dev", "none", "unknown")

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"semdrift 1.2.3", "abc123", "2026-01-15"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, `providers:
  llm:
    name: openai
    model: gpt-4o-mini
    api_key: test-key
`)

	out, err := execute(t, "info", "--config", cfg)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{
		"openai / gpt-4o-mini",
		"english → french → hebrew → english",
		"gpt-4o-mini",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
