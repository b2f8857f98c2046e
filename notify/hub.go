// Package notify pushes case lifecycle events to the live feed and by email.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Feed event names
const (
	EventCaseCreated       = "case_created"
	EventCaseStatusChanged = "case_status_changed"
	EventCaseHidden        = "case_hidden"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gauge tracks the number of connected clients
type Gauge interface {
	Inc()
	Dec()
}

// Event is one message on the live feed
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the connected feed clients and broadcasts events to them. A client
// whose buffer is full is dropped rather than slowing the others down.
type Hub struct {
	mutex   sync.Mutex
	clients map[*client]struct{}
	gauge   Gauge
	closed  bool
}

// NewHub returns an empty hub reporting its size to gauge
func NewHub(gauge Gauge) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		gauge:   gauge,
	}
}

// ServeHTTP upgrades the request and registers the connection
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	zap.S().Debugw("feed client connected", "remote", r.RemoteAddr, "clients", h.Len())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.gauge.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.gauge.Dec()
	}
}

// readPump discards client messages and notices disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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

// Broadcast sends the event to every connected client
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		zap.S().Errorw("failed to encode feed event", "event", event, "error", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			zap.S().Warnw("dropping slow feed client", "event", event)
			delete(h.clients, c)
			close(c.send)
			h.gauge.Dec()
		}
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.gauge.Dec()
	}
}
