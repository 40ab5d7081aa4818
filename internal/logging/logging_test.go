package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARNING", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"CRITICAL", LevelCritical, false},
		{" info ", slog.LevelInfo, false},
		{"TRACE", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) expected error, got nil", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "WARNING", Stderr: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO line written at WARNING level: %s", out)
	}
	if !strings.Contains(out, "level=WARNING") {
		t.Errorf("output missing level=WARNING: %s", out)
	}
}

func TestNew_CriticalLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "CRITICAL", Stderr: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	logger.Error("hidden")
	logger.Log(context.Background(), LevelCritical, "fatal")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("ERROR line written at CRITICAL level: %s", out)
	}
	if !strings.Contains(out, "level=CRITICAL") {
		t.Errorf("output missing level=CRITICAL: %s", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", Stderr: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	logger.Info("fetch.com has 67% availability percentage", "domain", "fetch.com")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["domain"] != "fetch.com" {
		t.Errorf("domain = %v, want fetch.com", entry["domain"])
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	if _, _, err := New(Options{Level: "LOUD"}); err == nil {
		t.Error("New() expected error for unknown level, got nil")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("New() expected error for unknown format, got nil")
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")

	var buf bytes.Buffer
	logger, closer, err := New(Options{File: path, Stderr: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("cycle complete", "cycle_id", "abc")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "cycle complete") {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(buf.String(), "cycle complete") {
		t.Errorf("stderr missing entry: %s", buf.String())
	}
}
