// Package watch reports changes to individual files. It watches each
// file's directory rather than the file itself, so files replaced by a
// rename are still seen after the replacement.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher calls onChange for a watched file once its events have been
// quiet for the debounce interval.
type Watcher struct {
	mu       sync.Mutex
	fs       *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration
	onChange func(path string)

	files   map[string]bool // cleaned absolute paths
	dirs    map[string]int  // watched directories and how many files use them
	pending map[string]time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stopped bool
}

// New creates a watcher. onChange runs on the watcher goroutine.
func New(logger *zap.Logger, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fs:       fw,
		log:      logger,
		debounce: debounce,
		onChange: onChange,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func clean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Add starts reporting changes to path.
func (w *Watcher) Add(path string) error {
	path = clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher stopped")
	}
	if w.files[path] {
		return nil
	}
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[path] = true
	w.log.Debug("watching file", zap.String("path", path))
	return nil
}

// Remove stops reporting changes to path.
func (w *Watcher) Remove(path string) error {
	path = clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return nil
	}
	delete(w.files, path)
	delete(w.pending, path)
	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.stopped {
		return nil
	}
	if err := w.fs.Remove(dir); err != nil {
		return fmt.Errorf("unwatching %s: %w", dir, err)
	}
	return nil
}

// Files returns the watched paths.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher stopped")
	}
	if w.running {
		return nil
	}
	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for it and releases the watcher. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	}
	if err := w.fs.Close(); err != nil {
		w.log.Warn("closing file watcher", zap.Error(err))
	}
}

func (w *Watcher) tick() time.Duration {
	return min(max(w.debounce/4, 10*time.Millisecond), 100*time.Millisecond)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := clean(event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return
	}
	w.pending[path] = time.Now()
	w.log.Debug("file event", zap.String("path", path), zap.String("op", event.Op.String()))
}

// flush reports files whose last event is older than the debounce interval.
func (w *Watcher) flush() {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.log.Debug("file changed", zap.String("path", path))
		w.onChange(path)
	}
}
