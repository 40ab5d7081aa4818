package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeCmd runs the root command with args and returns captured stdout
// and any error.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestRunValidate_ListConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "endpoints.yaml", `
- headers:
    user-agent: fetch-synthetic-monitor
  method: GET
  name: fetch index page
  url: https://fetch.com/
- headers:
    user-agent: fetch-synthetic-monitor
  method: GET
  name: fetch careers page
  url: https://fetch.com/careers
- body: '{"foo":"bar"}'
  headers:
    content-type: application/json
    user-agent: fetch-synthetic-monitor
  method: POST
  name: fetch some fake post endpoint
  url: https://fetch.com/some/post/endpoint
- name: fetch rewards index page
  url: https://www.fetchrewards.com/
`)

	output, err := executeCmd(t, "validate", path)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{
		"Config is valid!",
		"Endpoints: 4",
		"Domains:   2",
		"- fetch.com",
		"- www.fetchrewards.com",
	} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_DirectoryWithGrids(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", `
endpoints:
  - name: Test
    url: https://example.com
grids:
  - name: Platform
    url_template: "https://{{.env}}.example.com/health"
    dimensions:
      env: [prod, staging]
`)
	writeConfig(t, dir, "b.yml", `
- name: Other
  url: https://example.com/other
`)
	writeConfig(t, dir, "notes.txt", "ignored")

	output, err := executeCmd(t, "validate", dir)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{"Endpoints: 4", "Domains:   3"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "invalid.yaml", `
- name: ""
  url: https://example.com
`)

	_, err := executeCmd(t, "validate", path)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention 'name is required', got: %v", err)
	}
}

func TestRunValidate_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "- name: api\n  url: https://a.example.com\n")
	writeConfig(t, dir, "b.yaml", "- name: api\n  url: https://b.example.com\n")

	_, err := executeCmd(t, "validate", dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("validate command error = %v, want duplicate name error", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to stat config source") {
		t.Errorf("error should mention the unreadable source, got: %v", err)
	}
}

func TestRunValidate_RequiresPath(t *testing.T) {
	if _, err := executeCmd(t, "validate"); err == nil {
		t.Error("validate command expected error without a path, got nil")
	}
}

func TestRunServe_InvalidFlags(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "endpoints.yaml", "- name: a\n  url: https://example.com\n")

	// flag values persist on the shared command, so every case sets them all
	base := []string{"serve", path, "--interval=15", "--log-level=INFO", "--log-file=",
		"--metrics-port=8000", "--max-concurrency=0"}

	tests := []struct {
		name     string
		override string
		wantErr  string
	}{
		{"zero interval", "--interval=0", "--interval must be a positive"},
		{"bad log level", "--log-level=LOUD", "unknown log level"},
		{"bad log format", "--log-format=xml", "log format"},
		{"bad port", "--metrics-port=70000", "port must be between"},
		{"bad concurrency", "--max-concurrency=-1", "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{}, base...), "--log-format=text", tt.override)
			_, err := executeCmd(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("serve error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "pulsewatch dev") {
		t.Errorf("output = %q, want version line", output)
	}
}
