package socketserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/config"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/workspace"
)

// startTestServer boots a server over a temp workspace and tears it down
// with the test
func startTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *workspace.FSEditor, string) {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	root := t.TempDir()
	editor, err := workspace.NewFSEditor([]string{root})
	require.NoError(t, err)

	srv, err := NewServer(cfg, editor, editor.Events())
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	return srv, editor, editor.Roots()[0]
}

// dial connects a real WebSocket client to the hand-rolled server
func dial(t *testing.T, srv *Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set(AuthHeader, token)
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, resp, err := dialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/", srv.Port()), header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// roundTrip sends one JSON-RPC request and decodes the next message
func roundTrip(t *testing.T, conn *websocket.Conn, request string) Message {
	t.Helper()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(request)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestAuthEnforcement(t *testing.T) {
	srv, _, _ := startTestServer(t, nil)

	t.Run("missing header", func(t *testing.T) {
		_, resp, err := dial(t, srv, "")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong credential", func(t *testing.T) {
		_, resp, err := dial(t, srv, "not-the-credential")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("correct credential", func(t *testing.T) {
		conn, resp, err := dial(t, srv, srv.Credential())
		require.NoError(t, err)
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
		assert.Equal(t, Subprotocol, conn.Subprotocol())
	})
}

func TestSetCredentialRotatesTheGate(t *testing.T) {
	srv, _, _ := startTestServer(t, nil)
	original := srv.Credential()

	srv.SetCredential("rotated-token")

	_, resp, err := dial(t, srv, original)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, _, err = dial(t, srv, "rotated-token")
	require.NoError(t, err)
}

func TestConnectionCeiling(t *testing.T) {
	srv, _, _ := startTestServer(t, func(cfg *config.Config) {
		cfg.MaxConnections = 2
	})

	for i := 0; i < 2; i++ {
		_, _, err := dial(t, srv, srv.Credential())
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return srv.ConnectionCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, resp, err := dial(t, srv, srv.Credential())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 2, srv.ConnectionCount())
}

func TestDispatchOverTheWire(t *testing.T) {
	srv, _, root := startTestServer(t, nil)

	conn, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"initialize","id":1}`)
	assert.Equal(t, "1", string(resp.ID))
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), ProtocolVersion)

	// initialized is a notification; the very next response must belong
	// to the request after it
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"initialized"}`)))

	content := "package main\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(content), 0644))

	resp = roundTrip(t, conn, `{"jsonrpc":"2.0","method":"files/read","id":2,"params":{"path":"main.go"}}`)
	assert.Equal(t, "2", string(resp.ID))
	require.Nil(t, resp.Error)

	var readResult filesReadResult
	require.NoError(t, json.Unmarshal(resp.Result, &readResult))
	assert.Equal(t, content, readResult.Content)

	resp = roundTrip(t, conn, `{"jsonrpc":"2.0","method":"bogus","id":3}`)
	assert.Equal(t, "3", string(resp.ID))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestOversizedMessageRejected(t *testing.T) {
	srv, _, _ := startTestServer(t, func(cfg *config.Config) {
		cfg.MessageSizeLimit = 64
	})

	conn, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	big := fmt.Sprintf(`{"jsonrpc":"2.0","method":"initialize","id":1,"params":{"pad":"%s"}}`,
		strings.Repeat("a", 128))
	resp := roundTrip(t, conn, big)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)

	// Oversized input is transport-fatal: the connection goes away
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestMalformedJSONIsDroppedSilently(t *testing.T) {
	srv, _, _ := startTestServer(t, nil)

	conn, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{definitely not json`)))

	// The connection survives and keeps responding
	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"initialize","id":4}`)
	assert.Equal(t, "4", string(resp.ID))
	require.Nil(t, resp.Error)
}

func TestSelectionChangedBroadcast(t *testing.T) {
	srv, editor, _ := startTestServer(t, nil)

	first, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)
	second, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.ConnectionCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	editor.SetSelection(workspace.Selection{
		Text:     "selected text",
		FilePath: "/work/main.go",
		Start:    workspace.Position{Line: 1},
		End:      workspace.Position{Line: 1, Character: 13},
	})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MethodSelectionChanged, msg.Method)
		assert.Empty(t, msg.ID, "notifications carry no id")

		var params SelectionChangedParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		assert.Equal(t, "selected text", params.Text)
		assert.Equal(t, "file:///work/main.go", params.FileURL)
		assert.False(t, params.Selection.IsEmpty)
	}
}

func TestAtMentionedBroadcast(t *testing.T) {
	srv, editor, _ := startTestServer(t, nil)

	conn, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	editor.Open("/work/main.go")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MethodAtMentioned, msg.Method)

	var params AtMentionedParams
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	assert.Equal(t, "/work/main.go", params.FilePath)
	assert.Nil(t, params.LineStart)
}

func TestStopIsIdempotentAndClosesClients(t *testing.T) {
	srv, _, _ := startTestServer(t, nil)

	conn, _, err := dial(t, srv, srv.Credential())
	require.NoError(t, err)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
	assert.False(t, srv.IsRunning())
	assert.Equal(t, 0, srv.ConnectionCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "client should observe the closed connection")

	// A stopped server accepts nothing
	_, _, err = dial(t, srv, srv.Credential())
	assert.Error(t, err)
}

func TestCredentialIsFreshPerInstance(t *testing.T) {
	cfg := config.DefaultConfig()
	editor, err := workspace.NewFSEditor([]string{t.TempDir()})
	require.NoError(t, err)

	a, err := NewServer(cfg, editor, nil)
	require.NoError(t, err)
	b, err := NewServer(cfg, editor, nil)
	require.NoError(t, err)

	assert.Len(t, a.Credential(), credentialLength*2, "hex-encoded credential")
	assert.NotEqual(t, a.Credential(), b.Credential())
}
