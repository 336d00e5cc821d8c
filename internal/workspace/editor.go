package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
)

// eventBuffer bounds pending host events; beyond it new events are dropped
// rather than blocking the host callback.
const eventBuffer = 64

// FSEditor is a filesystem-backed Editor. It resolves documents against a
// set of workspace roots and tracks one active view whose selection the
// host updates through Open/SetSelection.
type FSEditor struct {
	roots []string

	mu        sync.RWMutex
	active    Selection
	hasActive bool

	events chan Event
}

// NewFSEditor creates an editor over the given workspace roots. Roots are
// made absolute up front so resolution and containment checks are stable.
func NewFSEditor(roots []string) (*FSEditor, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one workspace root is required")
	}

	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root %s: %w", root, err)
		}
		absRoots = append(absRoots, abs)
	}

	return &FSEditor{
		roots:  absRoots,
		events: make(chan Event, eventBuffer),
	}, nil
}

// Roots returns the absolute workspace root paths
func (e *FSEditor) Roots() []string {
	return append([]string(nil), e.roots...)
}

// Events is the channel the server subscribes to for change notifications
func (e *FSEditor) Events() <-chan Event {
	return e.events
}

// EventSink is the send side of the event channel, handed to producers
// like the file watcher so their events merge with the editor's own
func (e *FSEditor) EventSink() chan<- Event {
	return e.events
}

// ResolveAndRead resolves path inside the workspace roots and returns the
// file content. Absolute paths must fall under a root; relative paths are
// tried against each root in order.
func (e *FSEditor) ResolveAndRead(path string) (string, error) {
	resolved, err := e.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return string(data), nil
}

func (e *FSEditor) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}

	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		for _, root := range e.roots {
			if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
				return clean, nil
			}
		}
		return "", fmt.Errorf("%w: %s is outside the workspace", ErrNotFound, path)
	}

	for _, root := range e.roots {
		candidate := filepath.Join(root, path)
		// Join cleans "..", so re-check containment before touching disk
		if !strings.HasPrefix(candidate, root+string(filepath.Separator)) && candidate != root {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// CurrentSelection returns the selection in the active view
func (e *FSEditor) CurrentSelection() (Selection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.hasActive {
		return Selection{}, ErrNoActiveView
	}
	return e.active, nil
}

// Open makes path the active view with an empty selection at the origin.
// Called by the host when the user switches files.
func (e *FSEditor) Open(path string) {
	e.mu.Lock()
	e.active = Selection{FilePath: path, IsEmpty: true}
	e.hasActive = true
	e.mu.Unlock()

	e.emit(FileChangedEvent{Path: path})
}

// SetSelection updates the active view's selection. Called by the host
// when the user moves the cursor or selects text.
func (e *FSEditor) SetSelection(sel Selection) {
	e.mu.Lock()
	e.active = sel
	e.hasActive = true
	e.mu.Unlock()

	e.emit(SelectionChangedEvent{Selection: sel})
}

// CloseView clears the active view; CurrentSelection fails until the next Open
func (e *FSEditor) CloseView() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasActive = false
	e.active = Selection{}
}

func (e *FSEditor) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		logger.Warn("Workspace event dropped, subscriber is not keeping up")
	}
}
