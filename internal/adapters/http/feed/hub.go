// Package feed streams new attendance marks to websocket subscribers.
//
// Subscribers connect to the feed endpoint, optionally with ?course=ID to
// receive only that course's marks. Each notice is sent as one JSON text
// message. A subscriber that falls behind by more than the send buffer is
// disconnected rather than slowing the pipeline down.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn   *websocket.Conn
	course string
	send   chan []byte
}

// Hub fans mark notices out to connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	sendBuffer   int
	pingInterval time.Duration
	logger       logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*client]struct{}),
		sendBuffer:   64,
		pingInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("feed")
	}
	return h
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends n to every subscriber of its course. It never blocks.
func (h *Hub) Publish(ctx context.Context, n types.MarkNotice) {
	msg, err := json.Marshal(n)
	if err != nil {
		h.logger.Error(ctx, "encode mark notice", logger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if c.course != "" && c.course != n.CourseID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	metrics.RecordFeedBroadcast()

	for _, c := range slow {
		h.logger.Warn(ctx, "dropping slow feed client", logger.String("course", c.course))
		h.remove(c)
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{
		conn:   conn,
		course: model.NormalizeCourse(r.URL.Query().Get("course")),
		send:   make(chan []byte, h.sendBuffer),
	}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Info(r.Context(), "feed client connected",
		logger.String("course", c.course),
		logger.Int("clients", h.ClientCount()),
	)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.UpdateFeedClients(len(h.clients))
	return true
}

// remove unsubscribes c and closes its send channel; the write pump then
// closes the connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.UpdateFeedClients(len(h.clients))
}

// readPump discards client messages and keeps the read deadline alive.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdateFeedClients(0)
}
