// Package logging builds the process logger used by the pulsewatch CLI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical sits above [slog.LevelError].
const LevelCritical = slog.LevelError + 4

// DefaultFile is the log file used when none is configured.
const DefaultFile = "logs/monitor_endpoints.log"

// Rotation policy for the log file.
const (
	maxSizeMB  = 50
	maxBackups = 24
	maxAgeDays = 1
)

// Options configures [New].
type Options struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR or CRITICAL.
	// Empty means INFO.
	Level string

	// Format is "text" or "json". Empty means text.
	Format string

	// File is the rotating log file. Empty disables file output.
	File string

	// Stderr receives log output alongside the file. Defaults to os.Stderr.
	Stderr io.Writer
}

// ParseLevel converts a level name to a [slog.Level].
// Names are case-insensitive and WARN is accepted for WARNING.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (use DEBUG, INFO, WARNING, ERROR or CRITICAL)", name)
	}
}

// New builds a logger from opts.
//
// The returned closer releases the log file and must be called on shutdown.
// It is a no-op when file output is disabled.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameLevels,
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		_ = closer.Close()
		return nil, nil, errors.New("log format must be text or json")
	}

	return slog.New(handler), closer, nil
}

// renameLevels prints WARNING and CRITICAL instead of slog's WARN and ERROR+4.
func renameLevels(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level >= LevelCritical:
		a.Value = slog.StringValue("CRITICAL")
	case level == slog.LevelWarn:
		a.Value = slog.StringValue("WARNING")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
