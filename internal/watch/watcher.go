// Package watch re-runs verification when the record or its payload files
// change on disk.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the watcher waits after the last event before
// firing callbacks.
const DefaultSettle = 500 * time.Millisecond

// Watcher uses fsnotify to watch the data directory recursively. Bursts of
// events are coalesced: callbacks fire once the tree has been quiet for the
// settle period, with the last relevant path and op.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	match     func(path string) bool
	settle    time.Duration
	callbacks []func(path string, op string)
	mu        sync.Mutex // protects callbacks, timer, pending
	timer     *time.Timer
	pending   [2]string
	fireMu    sync.Mutex // serializes callback bursts
	done      chan struct{}
	logger    *slog.Logger
}

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Missing directories are logged and skipped.
	Dirs []string
	// Match reports whether a changed path is relevant. Nil matches every
	// .json file.
	Match func(path string) bool
	// Settle defaults to DefaultSettle.
	Settle time.Duration
}

func NewWatcher(opts Options, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	if opts.Match == nil {
		opts.Match = func(path string) bool { return filepath.Ext(path) == ".json" }
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	w := &Watcher{
		fsWatcher: fsw,
		match:     opts.Match,
		settle:    opts.Settle,
		done:      make(chan struct{}),
		logger:    logger.With("component", "watch.Watcher"),
	}

	for _, dir := range opts.Dirs {
		if err := w.addRecursive(dir); err != nil {
			w.logger.Warn("could not watch directory",
				"dir", dir,
				"error", err,
			)
		}
	}

	return w, nil
}

// OnChange registers a callback invoked after a settled burst of changes.
// Callbacks run on a timer goroutine, one burst at a time.
func (w *Watcher) OnChange(fn func(path string, op string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start begins watching for filesystem events in a background goroutine.
func (w *Watcher) Start() error {
	go w.loop()
	return nil
}

// Stop shuts down the watcher and releases resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	op := opString(event.Op)

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("failed to watch new directory",
					"path", path,
					"error", err,
				)
			}
		}
	}

	// Atomic writes land as temp files first.
	if strings.HasPrefix(filepath.Base(path), ".tmp-") || !w.match(path) {
		return
	}

	w.logger.Debug("file changed", "path", path, "op", op)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = [2]string{path, op}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.fire)
}

func (w *Watcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	path, op := w.pending[0], w.pending[1]
	cbs := make([]func(string, string), len(w.callbacks))
	copy(cbs, w.callbacks)
	w.mu.Unlock()

	w.fireMu.Lock()
	defer w.fireMu.Unlock()
	for _, fn := range cbs {
		fn(path, op)
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			if err := w.fsWatcher.Add(path); err != nil {
				w.logger.Warn("failed to add directory to watcher",
					"path", path,
					"error", err,
				)
			}
		}
		return nil
	})
}

func opString(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return op.String()
	}
}
