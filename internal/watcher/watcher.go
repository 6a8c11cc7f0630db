// Package watcher turns filesystem notifications into debounced batches of
// file events suitable for incremental indexing.
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

	"github.com/codescout/codescout/internal/ignore"
)

// Operation classifies a file event.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change, with Path relative to the watch root.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting a
	// batch. Default 200ms.
	DebounceWindow time.Duration

	// BufferSize is the batch channel capacity. Default 16.
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.BufferSize == 0 {
		o.BufferSize = 16
	}
	return o
}

// skipDirs are directories never worth watching.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".codescout":   true,
}

// Watcher watches a directory tree with fsnotify and emits debounced event
// batches.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
	root      string
	ignorer   *ignore.Matcher

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// New creates a watcher. Call Start to begin.
func New(opts Options, logger *slog.Logger) (*Watcher, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.BufferSize),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Batches returns the channel of debounced event batches. Closed on Stop.
func (w *Watcher) Batches() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Start watches root recursively until ctx is cancelled or Stop is called.
// It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.root = abs

	ignorer, err := ignore.FromWorkspace(abs)
	if err != nil {
		w.logger.Warn("skipping .gitignore", slog.String("error", err.Error()))
		ignorer = ignore.NewMatcher(nil)
	}
	w.ignorer = ignorer

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("watch directory tree: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		if path != root {
			if rel, relErr := filepath.Rel(root, path); relErr == nil && w.ignorer.Ignored(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		relPath = event.Name
	}
	if shouldIgnorePath(relPath) {
		return
	}
	if w.ignorer != nil && w.ignorer.Ignored(relPath, false) {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// Watch new directories as they appear.
			if err := w.fsWatcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					slog.String("path", event.Name),
					slog.String("error", err.Error()))
			}
			return
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return // chmod and friends
	}
	if isDir {
		return
	}

	w.debouncer.Add(FileEvent{Path: relPath, Operation: op, Timestamp: time.Now()})
}

// shouldIgnorePath drops events under skipped or hidden directories.
func shouldIgnorePath(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if skipDirs[part] {
			return true
		}
		if part != "." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Stop shuts the watcher down. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	err := w.fsWatcher.Close()
	w.debouncer.Stop()
	return err
}
