package socketserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/consts"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/wsframe"
)

// connState tracks a connection's lifecycle. It is updated synchronously
// under the client mutex rather than inferred from the socket, so the hub
// and the sweep always agree on what is alive.
type connState int

const (
	connOpen connState = iota
	connClosing
	connClosed
)

// Client is one established WebSocket connection. It is created only
// after the handshake and credential check succeed, and it is owned by
// the hub from that point until removal.
type Client struct {
	// ID identifies the connection in logs
	ID string

	conn       net.Conn
	hub        *Hub
	dispatcher *Dispatcher

	// recvBuffer accumulates bytes that have not yet formed a complete
	// frame; bounded by recvLimit
	recvBuffer []byte
	recvLimit  int
	msgLimit   int

	// mu guards state and serializes writes to conn
	mu    sync.Mutex
	state connState

	stopOnce sync.Once
}

func newClient(conn net.Conn, hub *Hub, dispatcher *Dispatcher, recvLimit, msgLimit int) *Client {
	return &Client{
		ID:         uuid.NewString(),
		conn:       conn,
		hub:        hub,
		dispatcher: dispatcher,
		recvLimit:  recvLimit,
		msgLimit:   msgLimit,
	}
}

// start launches the read loop
func (c *Client) start() {
	go c.readPump()
}

// readPump reads socket chunks, accumulates them in recvBuffer and
// dispatches every complete frame in arrival order. All frames decoded
// from one chunk are processed before the next read.
func (c *Client) readPump() {
	defer c.hub.Remove(c)

	buf := make([]byte, consts.BufferSize64KB)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Client %s disconnected", c.ID)
			} else if errors.Is(err, net.ErrClosed) {
				logger.Debug("Client %s connection closed", c.ID)
			} else {
				logger.Error("Read error on client %s: %v", c.ID, err)
			}
			return
		}

		c.recvBuffer = append(c.recvBuffer, buf[:n]...)
		if len(c.recvBuffer) > c.recvLimit {
			// A peer that never completes a frame cannot be allowed to
			// grow the buffer forever
			logger.Warn("Client %s exceeded receive buffer limit (%d bytes), dropping connection", c.ID, c.recvLimit)
			return
		}

		payloads, rest := wsframe.Decode(c.recvBuffer)
		c.recvBuffer = append(c.recvBuffer[:0:0], rest...)

		for _, payload := range payloads {
			if !c.handlePayload(payload) {
				return
			}
		}
	}
}

// handlePayload processes one decoded frame payload. Returns false when
// the connection must be torn down.
func (c *Client) handlePayload(payload string) bool {
	if len(payload) > c.msgLimit {
		logger.Warn("Client %s sent oversized message (%d bytes)", c.ID, len(payload))
		c.sendMessage(NewErrorResponse(nil, ErrCodeInvalidRequest,
			fmt.Sprintf("message exceeds size limit of %d bytes", c.msgLimit)))
		return false
	}

	if resp := c.dispatcher.Dispatch(payload); resp != nil {
		if err := c.sendMessage(resp); err != nil {
			logger.Warn("Failed to respond to client %s: %v", c.ID, err)
			return false
		}
	}
	return true
}

func (c *Client) sendMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.send(string(data))
}

// send encodes text into a frame and writes it. A write failure marks
// the connection closing so the sweep and broadcast skip it.
func (c *Client) send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != connOpen {
		return fmt.Errorf("connection %s is not writable", c.ID)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(consts.Timeout10Seconds)); err != nil {
		c.state = connClosing
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := c.conn.Write(wsframe.Encode(text)); err != nil {
		c.state = connClosing
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// isOpen reports whether the connection is still usable
func (c *Client) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == connOpen
}

// close tears down the transport. Idempotent; removal from the hub is
// the caller's job.
func (c *Client) close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.state = connClosed
		c.mu.Unlock()

		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("Error closing client %s: %v", c.ID, err)
		}
	})
}
