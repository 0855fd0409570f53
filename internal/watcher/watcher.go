// Package watcher monitors source directories and emits rescan
// triggers when audio files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soundleaf/soundleaf-server/internal/scanner"
)

// DefaultDebounce is the quiet period after the last change before a
// trigger fires. Audio files are large and arrive over many writes.
const DefaultDebounce = 2 * time.Second

// Trigger signals that the named source root should be rescanned.
type Trigger struct {
	Root string
}

// Watcher wraps fsnotify with per-root debouncing. One trigger is
// emitted per root per burst of changes, after the debounce window.
type Watcher struct {
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	roots  []string
	timers map[string]*time.Timer

	triggers chan Trigger
}

// New creates a watcher. A non-positive debounce uses the default.
func New(logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		logger:   logger,
		fsw:      fsw,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		triggers: make(chan Trigger, 16),
	}, nil
}

// Watch adds a source root and all its subdirectories.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot access path, not watching", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != filepath.Base(root) && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()

	w.logger.Info("watching source root", "root", root)
	return nil
}

// Triggers returns the channel of debounced rescan triggers.
func (w *Watcher) Triggers() <-chan Trigger {
	return w.triggers
}

// Start processes file system events until the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories must be added to the watch set before their
	// contents start arriving.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.maybeWatchDir(event.Name)
		}
	}

	if !interesting(event) {
		return
	}

	root := w.rootFor(event.Name)
	if root == "" {
		return
	}

	w.logger.Debug("file change detected", "path", event.Name, "op", event.Op.String())
	w.scheduleTrigger(root)
}

// maybeWatchDir adds a newly created directory to the watch set.
func (w *Watcher) maybeWatchDir(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if err := w.fsw.Add(path); err == nil {
		w.logger.Debug("added watch", "path", path)
	}
}

// scheduleTrigger arms or resets the debounce timer for a root.
func (w *Watcher) scheduleTrigger(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[root]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[root] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, root)
		w.mu.Unlock()

		select {
		case w.triggers <- Trigger{Root: root}:
		default:
			w.logger.Warn("trigger channel full, dropping rescan trigger", "root", root)
		}
	})
}

// rootFor returns the watched root containing path, or empty.
func (w *Watcher) rootFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// interesting reports whether an event should count toward a rescan:
// writes, creations, removals, and renames of audio files.
func interesting(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	return scanner.IsAudioExt(filepath.Ext(event.Name))
}
