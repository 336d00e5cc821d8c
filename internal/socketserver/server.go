package socketserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/config"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/consts"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/workspace"
)

const credentialLength = 32

// Server is the WebSocket protocol listener. It binds to loopback on an
// OS-assigned port, gates every upgrade through the credential check and
// connection ceiling, and hands established sockets to the hub.
type Server struct {
	cfg        *config.Config
	hub        *Hub
	dispatcher *Dispatcher

	// events feeds host-application changes in for broadcast; may be nil
	events <-chan workspace.Event

	listener net.Listener
	port     int

	credMu     sync.RWMutex
	credential string

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server reading through editor and broadcasting the
// host events arriving on events. A fresh credential is generated here;
// it lives for the server instance and is never reused across starts.
func NewServer(cfg *config.Config, editor workspace.Editor, events <-chan workspace.Event) (*Server, error) {
	credential, err := generateCredential()
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}

	return &Server{
		cfg:        cfg,
		hub:        NewHub(cfg.SweepInterval()),
		dispatcher: NewDispatcher(editor),
		events:     events,
		credential: credential,
		stopChan:   make(chan struct{}),
	}, nil
}

// Start binds the listener and launches the accept loop, the hub sweep
// and the event forwarder
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	// Loopback only: the peer is a trusted client on this machine
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	go s.hub.Run()
	go s.acceptLoop(ctx)
	if s.events != nil {
		go s.forwardEvents(ctx)
	}

	logger.Info("Socket server started on 127.0.0.1:%d (max connections: %d)", s.port, s.cfg.MaxConnections)
	return nil
}

// Stop closes the listener and every connection. Idempotent.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		logger.Info("Stopping socket server...")

		close(s.stopChan)
		s.hub.Shutdown()

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Error("Error closing listener: %v", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		logger.Info("Socket server stopped")
	})

	return nil
}

// Port returns the bound port, valid after Start
func (s *Server) Port() int {
	return s.port
}

// Credential returns the current server credential
func (s *Server) Credential() string {
	s.credMu.RLock()
	defer s.credMu.RUnlock()
	return s.credential
}

// SetCredential replaces the server credential. Existing connections
// already passed authentication and are unaffected.
func (s *Server) SetCredential(token string) {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	s.credential = token
}

// ConnectionCount returns the number of established connections
func (s *Server) ConnectionCount() int {
	return s.hub.Count()
}

// IsRunning returns whether the server is accepting connections
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// acceptLoop accepts sockets and runs the handshake gate on each. The
// gate runs inline so upgrade attempts are fully serialized, which is
// what makes the capacity check in upgrade airtight.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Accept loop stopped via context cancellation")
			return

		case <-s.stopChan:
			logger.Debug("Accept loop stopped via stop signal")
			return

		default:
			// Accept deadline lets the loop notice stopChan periodically
			if tcpListener, ok := s.listener.(*net.TCPListener); ok {
				_ = tcpListener.SetDeadline(time.Now().Add(consts.Timeout1Second))
			}

			conn, err := s.listener.Accept()
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					logger.Debug("Listener closed, exiting accept loop")
					return
				}
				logger.Error("Error accepting connection: %v", err)
				continue
			}

			s.handleConn(conn)
		}
	}
}

// handleConn gates one socket and, on success, registers it with the hub
func (s *Server) handleConn(conn net.Conn) {
	// Bound the whole handshake so a stalled peer cannot pin the accept loop
	_ = conn.SetDeadline(time.Now().Add(consts.Timeout10Seconds))

	if err := s.upgrade(conn); err != nil {
		logger.Warn("Rejected connection from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	_ = conn.SetDeadline(time.Time{})

	client := newClient(conn, s.hub, s.dispatcher, s.cfg.RecvBufferLimit, s.cfg.MessageSizeLimit)
	s.hub.Add(client)
	client.start()
}

// generateCredential produces the opaque per-instance secret
func generateCredential() (string, error) {
	buf := make([]byte, credentialLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
