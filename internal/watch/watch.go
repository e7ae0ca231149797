// Package watch follows a file on disk and feeds its changes to the
// playground as edits, so an outline stays in sync with an external editor.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/textutil"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Config holds watcher configuration options.
type Config struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher signals when a single file changes. Editors that save by renaming
// a temporary file over the original are handled by watching the directory.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	logger    *slog.Logger
	onChange  chan struct{}
	done      chan struct{}
}

// New creates a watcher for cfg.Path.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.Debounce,
		logger:    cfg.Logger,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives a signal after each
// debounced burst of changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	dir := filepath.Dir(w.path)

	err := w.fsWatcher.Add(dir)
	if err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)

	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}

			w.logger.Warn("watch error", "path", w.path, "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}

	return filepath.Clean(event.Name) == w.path
}

// Sink receives document changes.
type Sink interface {
	Edit(ctx context.Context, deltas ...edit.Delta) error
	Open(ctx context.Context, text, grammar string) error
}

// Follow re-reads path on every signal and sends the difference from the
// previously seen text to sink as edits, with positions in units. When the
// sink rejects the edits the whole text is reopened. It returns when ctx is
// done or changes is closed.
func Follow(ctx context.Context, changes <-chan struct{}, path, initial string, units edit.Units, sink Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	last := initial

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.WarnContext(ctx, "reread failed", "path", path, "error", err)

			continue
		}

		err = textutil.CheckText(data)
		if err != nil {
			logger.WarnContext(ctx, "skipping change", "path", path, "error", err)

			continue
		}

		text := string(data)

		deltas := document.Diff(last, text, units)
		if len(deltas) == 0 {
			continue
		}

		err = sink.Edit(ctx, deltas...)
		if err != nil {
			logger.WarnContext(ctx, "edits rejected, reopening", "path", path, "error", err)

			err = sink.Open(ctx, text, "")
			if err != nil {
				return fmt.Errorf("reopen %s: %w", path, err)
			}
		}

		logger.DebugContext(ctx, "file changed", "path", path, "edits", len(deltas))

		last = text
	}
}
