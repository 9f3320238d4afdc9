// Package watcher re-runs a callback when watched files change.
//
// It backs `pvar render --watch`, which re-renders a template whenever the
// template file or the database behind it is rewritten.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher monitors a set of files and reports changes after a debounce delay.
type Watcher struct {
	// watched maps every tracked file name to the path reported to onChange.
	watched map[string]string
	dirs    []string

	debounceDelay time.Duration
	logger        *zap.Logger

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex

	onChange func(ctx context.Context, path string)
}

// Config holds configuration options for the Watcher.
type Config struct {
	Paths         []string
	DebounceDelay time.Duration // Default: 100ms
	Logger        *zap.Logger
	OnChange      func(ctx context.Context, path string)
}

// sidecars are SQLite companion files whose writes count as a change to the
// database itself.
var sidecars = []string{"-wal", "-journal"}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watched:       make(map[string]string),
		debounceDelay: debounce,
		logger:        logger,
		pending:       make(map[string]time.Time),
		onChange:      cfg.OnChange,
	}

	dirs := make(map[string]bool)
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.watched[abs] = abs
		for _, suffix := range sidecars {
			w.watched[abs+suffix] = abs
		}
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		w.dirs = append(w.dirs, dir)
	}
	sort.Strings(w.dirs)

	return w, nil
}

// Start begins watching. It blocks until the context is cancelled.
// Parent directories are watched rather than the files so that editors which
// replace a file by renaming over it are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	target, ok := w.watched[filepath.Clean(event.Name)]
	if !ok {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("file event", zap.String("op", event.Op.String()), zap.String("path", event.Name))
	w.schedule(target)
}

// schedule adds a path to the pending queue, pushing back its deadline.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = time.Now()
}

// processDebounced processes pending changes after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending reports paths whose last event is older than the debounce
// delay.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	ready := make([]string, 0)

	for path, scheduledAt := range w.pending {
		if now.Sub(scheduledAt) >= w.debounceDelay {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		w.logger.Info("change detected", zap.String("path", path))
		w.onChange(ctx, path)
	}
}
