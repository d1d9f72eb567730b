package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	clientBuffer      = 64
	broadcastBuffer   = 256
	keepAliveInterval = 30 * time.Second
)

type client struct {
	id     string
	events chan []byte
}

// Hub fans updates out to connected SSE clients. Slow clients miss
// messages instead of blocking the hub.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	broadcast chan Update
	logger    *log.Logger
	keepAlive time.Duration
}

// NewHub creates a hub. Call [Hub.Run] to start delivery.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan Update, broadcastBuffer),
		logger:    logger,
		keepAlive: keepAliveInterval,
	}
}

// Run delivers broadcast updates until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case u := <-h.broadcast:
			h.fanOut(u)
		}
	}
}

// Broadcast queues u for delivery. It never blocks; when the queue is full
// the update is dropped.
func (h *Hub) Broadcast(u Update) {
	select {
	case h.broadcast <- u:
	default:
		h.logger.Warn("push queue full, dropping update", "layer", u.Layer)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanOut(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("marshal push update", "err", err)
		return
	}
	msg := []byte(fmt.Sprintf("data: %s\n\n", data))

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.events <- msg:
		default:
			h.logger.Warn("push client is slow, skipping update", "client", c.id, "layer", u.Layer)
		}
	}
}

func (h *Hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) remove(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.events)
	}
}

// ServeHTTP streams updates to one client as Server-Sent Events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	c := &client{id: uuid.NewString(), events: make(chan []byte, clientBuffer)}
	total := h.add(c)
	h.logger.Debug("push client connected", "client", c.id, "total", total)
	defer func() {
		total := h.remove(c)
		h.logger.Debug("push client disconnected", "client", c.id, "total", total)
	}()

	fmt.Fprintf(w, ": connected %s\n\n", c.id)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
