package progress

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
)

const (
	EventResult  = "result"
	EventSummary = "summary"

	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// Event is one message on the progress feed
type Event struct {
	Type    string             `json:"type"`
	ID      int                `json:"id,omitempty"`
	Outcome string             `json:"outcome,omitempty"`
	Name    string             `json:"name,omitempty"`
	Error   string             `json:"error,omitempty"`
	Summary *collector.Summary `json:"summary,omitempty"`
}

// Hub fans collector results out to WebSocket subscribers.
// Slow subscribers drop messages rather than stall the collector.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local tooling; any origin may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log.Component("Progress"),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the peer goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards incoming frames; it returns when the connection closes
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish sends an event to every subscriber
func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Errorf("Failed to encode event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Observe implements collector.Observer
func (h *Hub) Observe(r collector.Result) {
	e := Event{Type: EventResult, ID: r.ID, Outcome: r.Outcome.String()}
	if r.OK() {
		e.Name = r.Record.Name
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	h.Publish(e)
}

// Finish publishes the run summary
func (h *Hub) Finish(s collector.Summary) {
	h.Publish(Event{Type: EventSummary, Summary: &s})
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Serve exposes the feed at /progress on addr until ctx is cancelled
func (h *Hub) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/progress", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		h.log.Infof("Serving progress feed on ws://%s/progress", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Errorf("Progress server stopped: %v", err)
		}
	}()
}
