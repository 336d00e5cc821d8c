package socketserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/workspace"
)

// Request method names
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodFilesRead          = "files/read"
	MethodWorkspaceSelection = "workspace/selection"
	MethodResourcesList      = "resources/list"
)

// ProtocolVersion is the MCP revision advertised by initialize
const ProtocolVersion = "2024-11-05"

// ServerName and ServerVersion identify this implementation to clients
const (
	ServerName    = "claude-code-bridge"
	ServerVersion = "0.1.0"
)

// Dispatcher routes decoded JSON-RPC payloads to method handlers. It is
// stateless apart from the editor it queries, so one instance serves all
// connections.
type Dispatcher struct {
	editor workspace.Editor
}

// NewDispatcher creates a dispatcher reading through editor
func NewDispatcher(editor workspace.Editor) *Dispatcher {
	return &Dispatcher{editor: editor}
}

// Dispatch parses one frame payload and routes it. The returned message
// is the response to send back, or nil when none is owed: notifications,
// inbound responses and unparsable payloads all produce nothing.
func (d *Dispatcher) Dispatch(payload string) *Message {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		// Without a parsed id there is no request to answer
		logger.Warn("Dropping unparsable message: %v", err)
		return nil
	}

	switch {
	case msg.IsResponse():
		// This server never issues requests, so a response has no home
		logger.Debug("Ignoring unexpected response message")
		return nil

	case msg.IsNotification():
		d.handleNotification(&msg)
		return nil

	case msg.IsRequest():
		return d.handleRequest(&msg)

	default:
		logger.Warn("Dropping message with no method or result")
		return nil
	}
}

func (d *Dispatcher) handleNotification(msg *Message) {
	switch msg.Method {
	case MethodInitialized:
		logger.Info("Client initialization acknowledged")
	default:
		// Notifications carry no id, so errors have nowhere to go
		logger.Debug("Ignoring notification %q", msg.Method)
	}
}

func (d *Dispatcher) handleRequest(msg *Message) (resp *Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler for %q panicked: %v", msg.Method, r)
			resp = NewErrorResponse(msg.ID, ErrCodeInternalError, fmt.Sprintf("%v", r))
		}
	}()

	var (
		result interface{}
		err    error
	)

	switch msg.Method {
	case MethodInitialize:
		result = d.handleInitialize()
	case MethodFilesRead:
		result, err = d.handleFilesRead(msg.Params)
	case MethodWorkspaceSelection:
		result, err = d.handleWorkspaceSelection()
	case MethodResourcesList:
		result = d.handleResourcesList()
	default:
		return NewErrorResponse(msg.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}

	if err != nil {
		return NewErrorResponse(msg.ID, errorCodeFor(err), err.Error())
	}

	response, err := NewResponse(msg.ID, result)
	if err != nil {
		logger.Error("Failed to encode result for %q: %v", msg.Method, err)
		return NewErrorResponse(msg.ID, ErrCodeInternalError, "failed to encode result")
	}
	return response
}

// errInvalidParams marks parameter validation failures for code mapping
var errInvalidParams = errors.New("invalid params")

func errorCodeFor(err error) int {
	if errors.Is(err, errInvalidParams) {
		return ErrCodeInvalidParams
	}
	return ErrCodeInternalError
}

// initializeResult advertises fixed protocol and capability data
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (d *Dispatcher) handleInitialize() initializeResult {
	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		ServerInfo: serverInfo{Name: ServerName, Version: ServerVersion},
	}
}

type filesReadParams struct {
	Path string `json:"path"`
}

type filesReadResult struct {
	Content string `json:"content"`
}

func (d *Dispatcher) handleFilesRead(params json.RawMessage) (interface{}, error) {
	var p filesReadParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
	}
	if p.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidParams)
	}

	content, err := d.editor.ResolveAndRead(p.Path)
	if err != nil {
		return nil, err
	}
	return filesReadResult{Content: content}, nil
}

type selectionResult struct {
	Text      string             `json:"text"`
	FilePath  string             `json:"filePath"`
	Cursor    workspace.Position `json:"cursor"`
	Selection selectionRange     `json:"selection"`
}

type selectionRange struct {
	Start   workspace.Position `json:"start"`
	End     workspace.Position `json:"end"`
	IsEmpty bool               `json:"isEmpty"`
}

func (d *Dispatcher) handleWorkspaceSelection() (interface{}, error) {
	sel, err := d.editor.CurrentSelection()
	if err != nil {
		return nil, err
	}

	return selectionResult{
		Text:     sel.Text,
		FilePath: sel.FilePath,
		Cursor:   sel.End,
		Selection: selectionRange{
			Start:   sel.Start,
			End:     sel.End,
			IsEmpty: sel.IsEmpty,
		},
	}, nil
}

type resourcesListResult struct {
	Resources []interface{} `json:"resources"`
}

func (d *Dispatcher) handleResourcesList() resourcesListResult {
	// Reserved for future extension
	return resourcesListResult{Resources: []interface{}{}}
}
