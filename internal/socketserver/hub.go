package socketserver

import (
	"sync"
	"time"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
)

// Hub owns the set of established connections. Every socket in the set
// has passed the handshake and credential check; nothing else ever joins.
// A periodic sweep evicts connections that died without a read error
// reaching their pump.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	sweepInterval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub sweeping at the given interval
func NewHub(sweepInterval time.Duration) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Run drives the sweep ticker until Shutdown
func (h *Hub) Run() {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Add inserts an authenticated connection into the active set
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	logger.Info("Client %s registered (total: %d)", client.ID, len(h.clients))
}

// Remove closes the client's transport and deletes it from the set.
// Idempotent; callable from read pumps, broadcast and the sweep.
func (h *Hub) Remove(client *Client) {
	client.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		logger.Info("Client %s removed (total: %d)", client.ID, len(h.clients))
	}
}

// Count returns the number of active connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends text to every live connection. The set is snapshotted
// first so a removal mid-broadcast cannot upset the iteration; a
// connection that fails to take the write is dropped and the rest still
// receive the message.
func (h *Hub) Broadcast(text string) {
	for _, client := range h.snapshot() {
		if !client.isOpen() {
			h.Remove(client)
			continue
		}
		if err := client.send(text); err != nil {
			logger.Warn("Broadcast to client %s failed, removing: %v", client.ID, err)
			h.Remove(client)
		}
	}
}

// sweep evicts connections whose transport died without an event
// reaching the hub
func (h *Hub) sweep() {
	for _, client := range h.snapshot() {
		if !client.isOpen() {
			logger.Info("Sweep evicting dead client %s", client.ID)
			h.Remove(client)
		}
	}
}

// Shutdown stops the sweep and force-closes every connection. Idempotent.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopChan)

		for _, client := range h.snapshot() {
			h.Remove(client)
		}
		logger.Info("Hub shut down, all connections closed")
	})
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}
