package socketserver

import (
	"context"
	"encoding/json"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/workspace"
)

// Outbound notification methods
const (
	MethodAtMentioned      = "at_mentioned"
	MethodSelectionChanged = "selection_changed"
)

// AtMentionedParams announces a file the user is pointing the client at
type AtMentionedParams struct {
	FilePath  string `json:"filePath"`
	LineStart *int   `json:"lineStart,omitempty"`
	LineEnd   *int   `json:"lineEnd,omitempty"`
}

// SelectionChangedParams mirrors the active view's selection state
type SelectionChangedParams struct {
	Text      string         `json:"text"`
	FilePath  string         `json:"filePath"`
	FileURL   string         `json:"fileUrl"`
	Selection selectionRange `json:"selection"`
}

// Broadcast sends a notification with the given method and params to
// every connected client
func (s *Server) Broadcast(method string, params interface{}) error {
	msg, err := NewNotification(method, params)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.hub.Broadcast(string(data))
	return nil
}

// forwardEvents turns host-application events into broadcasts. It runs
// until the event channel closes or the server stops.
func (s *Server) forwardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.broadcastEvent(ev)
		}
	}
}

func (s *Server) broadcastEvent(ev workspace.Event) {
	switch e := ev.(type) {
	case workspace.FileChangedEvent:
		params := AtMentionedParams{FilePath: e.Path}
		if e.HasLines {
			start, end := e.LineStart, e.LineEnd
			params.LineStart = &start
			params.LineEnd = &end
		}
		if err := s.Broadcast(MethodAtMentioned, params); err != nil {
			logger.Error("Failed to broadcast %s: %v", MethodAtMentioned, err)
		}

	case workspace.SelectionChangedEvent:
		sel := e.Selection
		params := SelectionChangedParams{
			Text:     sel.Text,
			FilePath: sel.FilePath,
			FileURL:  fileURL(sel.FilePath),
			Selection: selectionRange{
				Start:   sel.Start,
				End:     sel.End,
				IsEmpty: sel.IsEmpty,
			},
		}
		if err := s.Broadcast(MethodSelectionChanged, params); err != nil {
			logger.Error("Failed to broadcast %s: %v", MethodSelectionChanged, err)
		}

	default:
		logger.Debug("Ignoring unknown workspace event %T", ev)
	}
}

// fileURL renders a path in file scheme form for clients that want URIs
func fileURL(path string) string {
	if path == "" {
		return ""
	}
	return "file://" + path
}
