package socketserver

import "encoding/json"

// JSONRPCVersion is the protocol version stamped on every message
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes used by the dispatcher
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Message is the JSON-RPC 2.0 envelope. The three message kinds are
// discriminated by field presence: a method with an id is a request, a
// method without one is a notification, and a result or error without a
// method is a response. The id stays a raw value end to end so string,
// number and null ids all echo back exactly as sent.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a failed response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HasID reports whether the message carries a usable id. A literal null
// id gets the same treatment as an absent one.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// IsRequest reports whether the message expects exactly one response
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.HasID()
}

// IsNotification reports whether the message is fire-and-forget
func (m *Message) IsNotification() bool {
	return m.Method != "" && !m.HasID()
}

// IsResponse reports whether the message answers an earlier request
func (m *Message) IsResponse() bool {
	return m.Method == "" && (len(m.Result) > 0 || m.Error != nil)
}

// NewResponse builds a success response echoing id
func NewResponse(id json.RawMessage, result interface{}) (*Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: JSONRPCVersion, ID: id, Result: data}, nil
}

// NewErrorResponse builds an error response echoing id
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// NewNotification builds an outbound notification
func NewNotification(method string, params interface{}) (*Message, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: JSONRPCVersion, Method: method, Params: data}, nil
}
