package pushserver

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/coder/websocket"

	"go2tv.app/beamdeck/internal/domain"
)

const sendQueueSize = 64

// Hub is the set of connected clients. Publish fans an event out to all of
// them without blocking; a client whose queue is full is disconnected.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger:  logger,
		clients: map[string]*client{},
	}
}

func (h *Hub) Publish(event domain.Event) {
	msg := outbound{Event: event.Name, Data: event.Data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.enqueue(msg) {
			h.logger.Warn("push_client_dropped", slog.String("client_id", c.id), slog.String("reason", "send queue full"))
			go c.close(websocket.StatusPolicyViolation, "client too slow")
		}
	}
}

// ClientIDs lists connected clients, sorted.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
}

var _ domain.Publisher = (*Hub)(nil)
