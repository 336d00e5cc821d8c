package socketserver

import (
	"bufio"
	"fmt"
	"net"
	"net/http"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/wsframe"
)

// AuthHeader carries the credential on the upgrade request
const AuthHeader = "x-claude-code-ide-authorization"

// Subprotocol is the application subprotocol advertised in the handshake
const Subprotocol = "mcp"

// upgrade drives the handshake gate on a raw accepted socket: parse the
// HTTP upgrade request, check the credential, check capacity, then write
// the 101. Any failure writes a minimal plaintext error and reports it;
// the caller closes the socket. The credential value is never logged.
func (s *Server) upgrade(conn net.Conn) error {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		writeHTTPError(conn, http.StatusBadRequest, "malformed upgrade request")
		return fmt.Errorf("malformed upgrade request: %w", err)
	}

	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		writeHTTPError(conn, http.StatusBadRequest, "missing sec-websocket-key header")
		return fmt.Errorf("missing sec-websocket-key header")
	}

	auth := req.Header.Get(AuthHeader)
	if auth == "" {
		writeHTTPError(conn, http.StatusUnauthorized, "missing authorization header")
		return fmt.Errorf("missing authorization header")
	}
	if auth != s.Credential() {
		writeHTTPError(conn, http.StatusUnauthorized, "invalid authorization header")
		return fmt.Errorf("credential mismatch")
	}

	// Capacity is checked before the 101 goes out. Upgrades are
	// serialized on the accept loop, so the ceiling cannot be raced past.
	if s.hub.Count() >= s.cfg.MaxConnections {
		writeHTTPError(conn, http.StatusServiceUnavailable, "connection limit reached")
		return fmt.Errorf("connection limit reached (%d)", s.cfg.MaxConnections)
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + wsframe.AcceptKey(key) + "\r\n" +
		"Sec-WebSocket-Protocol: " + Subprotocol + "\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(response)); err != nil {
		return fmt.Errorf("failed to write handshake response: %w", err)
	}

	return nil
}

// writeHTTPError sends a minimal plaintext HTTP error before the socket
// is closed. Best effort; the connection is doomed either way.
func writeHTTPError(conn net.Conn, status int, body string) {
	response := fmt.Sprintf("HTTP/1.1 %d %s\r\n"+
		"Content-Type: text/plain\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n"+
		"%s", status, http.StatusText(status), len(body), body)

	if _, err := conn.Write([]byte(response)); err != nil {
		logger.Debug("Failed to write %d response: %v", status, err)
	}
}
