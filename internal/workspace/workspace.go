// Package workspace is the boundary between the protocol server and the
// host application's editor state. The server only ever reads through the
// Editor interface and observes changes through the event channel; it
// never mutates editor state itself.
package workspace

import "errors"

var (
	// ErrNotFound means a path could not be resolved to a readable document
	ErrNotFound = errors.New("document not found")
	// ErrNoActiveView means no editor view is currently focused
	ErrNoActiveView = errors.New("no active editor view")
)

// Position is a zero-based line/character location in a document
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Selection describes the current selection in the active view
type Selection struct {
	Text     string   `json:"text"`
	FilePath string   `json:"filePath"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
	IsEmpty  bool     `json:"isEmpty"`
}

// Editor is the read-only view of the host application the server consumes
type Editor interface {
	// ResolveAndRead resolves path against the workspace and returns the
	// document content, or ErrNotFound
	ResolveAndRead(path string) (string, error)

	// CurrentSelection returns the selection in the focused view, or
	// ErrNoActiveView
	CurrentSelection() (Selection, error)
}

// Event is a host-application change pushed into the server for broadcast
type Event interface {
	event()
}

// FileChangedEvent fires when a workspace file is opened or modified
type FileChangedEvent struct {
	Path      string
	LineStart int
	LineEnd   int
	HasLines  bool
}

// SelectionChangedEvent fires when the selection in the active view moves
type SelectionChangedEvent struct {
	Selection Selection
}

func (FileChangedEvent) event()      {}
func (SelectionChangedEvent) event() {}
