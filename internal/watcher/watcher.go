// Package watcher reloads the endpoint registry when its configuration
// source changes.
//
// The watcher polls the source on its own interval, independent of the probe
// cycle. A change is detected by fingerprinting the source files; unchanged
// sources are never re-parsed. A source that cannot be read or parsed is
// logged and the registry keeps its current version.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/pulsewatch/internal/registry"
	"github.com/jpalmerr/pulsewatch/internal/source"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 5 * time.Second

// LoadFunc parses the source at path into registry items.
type LoadFunc[T any] func(path string) ([]T, error)

// Watcher keeps a [registry.Registry] in sync with a configuration source.
type Watcher[T any] struct {
	path     string
	interval time.Duration
	load     LoadFunc[T]
	registry *registry.Registry[T]
	logger   *slog.Logger

	mu          sync.Mutex
	seen        bool
	fingerprint uint64
	lastErr     string
}

// New creates a [Watcher] for the file or directory at path.
//
// interval defaults to [DefaultInterval] when not positive.
func New[T any](path string, interval time.Duration, load LoadFunc[T], reg *registry.Registry[T], logger *slog.Logger) *Watcher[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher[T]{
		path:     path,
		interval: interval,
		load:     load,
		registry: reg,
		logger:   logger,
	}
}

// Path returns the watched source path.
func (w *Watcher[T]) Path() string {
	return w.path
}

// Check compares the source against the last seen fingerprint and reloads
// the registry if it changed.
//
// It reports whether a new registry version was installed. On error the
// registry is left untouched. A broken source is only parsed again once its
// contents change.
func (w *Watcher[T]) Check() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fp, err := source.Fingerprint(w.path)
	if err != nil {
		w.reportError("config source unreadable, keeping current endpoints", err)
		return false, err
	}

	if w.seen && fp == w.fingerprint {
		// readable again with the contents already loaded
		w.lastErr = ""
		return false, nil
	}
	w.seen = true
	w.fingerprint = fp

	items, err := w.load(w.path)
	if err != nil {
		w.reportError("config reload failed, keeping current endpoints", err)
		return false, fmt.Errorf("failed to load %s: %w", w.path, err)
	}
	w.lastErr = ""

	version := w.registry.Load(items)
	w.logger.Info("config reloaded",
		"path", w.path,
		"registry_version", version.Number,
		"endpoints", version.Len(),
	)
	if version.Len() == 0 {
		w.logger.Warn("config source defines no endpoints", "path", w.path)
	}
	return true, nil
}

// Run checks the source every interval until ctx is cancelled.
//
// Run does not perform an immediate check; callers that need the registry
// populated before probing should call [Watcher.Check] first.
func (w *Watcher[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Check()
		}
	}
}

// reportError logs err once per distinct message so a persistently broken
// source does not flood the log.
func (w *Watcher[T]) reportError(msg string, err error) {
	if err.Error() == w.lastErr {
		return
	}
	w.lastErr = err.Error()
	w.logger.Warn(msg,
		"path", w.path,
		"registry_version", w.registry.Snapshot().Number,
		"error", err.Error(),
	)
}
