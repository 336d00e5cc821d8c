package workspace

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/consts"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
)

// Watcher turns filesystem writes under the workspace roots into
// FileChangedEvents on the editor's event channel. Editors save in bursts
// (write, chmod, rename), so events for one path are debounced before
// being forwarded.
type Watcher struct {
	watcher  *fsnotify.Watcher
	events   chan<- Event
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	stopChan chan struct{}
}

// NewWatcher starts watching the given roots and forwards change events
// into events. Close must be called to release the underlying watcher.
func NewWatcher(roots []string, events chan<- Event) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, root := range roots {
		if err := fsw.Add(root); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	w := &Watcher{
		watcher:  fsw,
		events:   events,
		debounce: consts.DefaultWatchDebounce,
		pending:  make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}

	go w.watchFiles()

	return w, nil
}

// watchFiles monitors filesystem events and schedules debounced forwards
func (w *Watcher) watchFiles() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("Filesystem watcher error: %v", err)
		}
	}
}

// schedule resets the per-path debounce timer
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.events <- FileChangedEvent{Path: path}:
		default:
			logger.Warn("File change event dropped for %s", path)
		}
	})
}

// Close stops the watcher and cancels any pending debounce timers
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.stopChan)
	return w.watcher.Close()
}
