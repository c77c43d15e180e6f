// Package watch triggers rebuilds when configuration or catalog files change.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Callback is called with the set of changed files after the debounce window.
type Callback func(changed []string)

// Watcher monitors a fixed set of files for writes. Watches are placed on the
// parent directories because editors replace files on save, which breaks a
// watch on the file itself.
type Watcher struct {
	watcher  *fsnotify.Watcher
	callback Callback
	debounce time.Duration
	logger   *slog.Logger

	files   map[string]struct{}
	dirs    map[string]struct{}
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// New creates a watcher that invokes callback after changes settle.
func New(callback Callback, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fsw,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid changes
		logger:   logger.With("component", "watch"),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]struct{}),
	}, nil
}

// AddFile starts watching a single file.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.files[abs]; exists {
		return nil // Already watching
	}

	dir := filepath.Dir(abs)
	if _, exists := w.dirs[dir]; !exists {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}

	w.files[abs] = struct{}{}
	return nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "error", err)
			}
		}
	}()
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only care about writes and creates
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, watched := w.files[abs]; !watched {
		return // Sibling file in a watched directory
	}

	w.pending[abs] = struct{}{}

	// Reset or start debounce timer
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if w.callback == nil || len(pending) == 0 {
		return
	}

	changed := make([]string, 0, len(pending))
	for f := range pending {
		changed = append(changed, f)
	}
	sort.Strings(changed)

	w.logger.Info("files changed", "files", changed)
	w.callback(changed)
}

// SetDebounce sets the debounce duration for batching file changes.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}
