package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gatewaylab/gwbench/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow requests without Origin header (same-origin or direct)
		}

		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}

		// Allow same origin (same host)
		if originURL.Host == r.Host {
			return true
		}

		// Allow localhost connections (common for development)
		if originURL.Hostname() == "localhost" || originURL.Hostname() == "127.0.0.1" {
			return true
		}

		return false
	},
}

// clientBufferSize bounds the per-client outbound queue. A consumer that
// stops reading loses events instead of stalling the runner.
const clientBufferSize = 16

// Hub fans progress events out to connected WebSocket clients. Publish never
// blocks: events to slow clients are dropped, consumers re-sync from the
// store on reconnect.
type Hub struct {
	logger *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]chan types.ProgressEvent

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a progress event hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan types.ProgressEvent),
		done:    make(chan struct{}),
	}
}

// Publish fans an event out to every connected client. Fire and forget.
func (h *Hub) Publish(event types.ProgressEvent) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
			// Client is not keeping up; drop the event.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Stop disconnects all clients.
func (h *Hub) Stop() {
	h.doneOnce.Do(func() { close(h.done) })

	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]chan types.ProgressEvent)
	h.clientsMu.Unlock()
}

// Handler returns the WebSocket HTTP handler.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		ch := make(chan types.ProgressEvent, clientBufferSize)

		h.clientsMu.Lock()
		h.clients[conn] = ch
		total := len(h.clients)
		h.clientsMu.Unlock()

		h.logger.Debug("WebSocket client connected", slog.Int("total_clients", total))

		go h.writeLoop(conn, ch)

		// Read messages (mainly for ping/pong and close detection).
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("WebSocket read error", slog.String("error", err.Error()))
				}
				break
			}
		}

		h.clientsMu.Lock()
		delete(h.clients, conn)
		close(ch)
		total = len(h.clients)
		h.clientsMu.Unlock()
		conn.Close()

		h.logger.Debug("WebSocket client disconnected", slog.Int("total_clients", total))
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, ch chan types.ProgressEvent) {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal progress event", slog.String("error", err.Error()))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write to WebSocket", slog.String("error", err.Error()))
				// The read loop will observe the broken connection and clean up.
				return
			}
		}
	}
}
