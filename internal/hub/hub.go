// Package hub pushes upload progress messages to browsers over WebSocket.
//
// A browser connects to the hub before starting an upload and receives a
// connection id as the first frame. It passes that id along with the upload
// request; the pipeline's progress messages are then routed to exactly that
// connection. Messages to a slow or vanished connection are dropped so the
// pipeline never blocks on a browser.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// sendBuffer bounds per-connection queued messages. A full buffer
	// means the browser is not keeping up and further messages drop.
	sendBuffer = 64
)

// frame is the wire format for every message the hub emits.
type frame struct {
	ConnectionID string `json:"connectionId,omitempty"`
	Message      string `json:"message,omitempty"`
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// close signals shutdown. The send channel is never closed so late
// Notify calls cannot panic; their messages are simply never drained.
func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Hub tracks connected browsers by connection id.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[uuid.UUID]*conn
	closed bool
}

// New returns an empty hub.
func New(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Upload UI and API share an origin; the reverse proxy
			// enforces it, so accept here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[uuid.UUID]*conn),
	}
}

// ServeHTTP upgrades the request and registers the connection. The first
// frame sent is the connection id the client echoes back on upload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New()
	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[id] = c
	h.mu.Unlock()

	hello, _ := json.Marshal(frame{ConnectionID: id.String()})
	c.send <- hello

	go h.writePump(id, c)
	go h.readPump(id, c)
}

// writePump is the sole writer on the connection. It drains the send
// channel and keeps the connection alive with pings.
func (h *Hub) writePump(id uuid.UUID, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(id)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(id)
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// readPump discards inbound frames; its job is detecting the close.
func (h *Hub) readPump(id uuid.UUID, c *conn) {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			h.drop(id)
			return
		}
	}
}

func (h *Hub) drop(id uuid.UUID) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Close disconnects every client. New upgrades are refused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[uuid.UUID]*conn)
	h.closed = true
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// Notifier returns a notifier bound to the given connection id. An empty
// or unparseable id yields a notifier that silently discards, so uploads
// without a listening browser still run.
func (h *Hub) Notifier(connectionID string) ClientNotifier {
	id, err := uuid.Parse(connectionID)
	if err != nil {
		return ClientNotifier{}
	}
	return ClientNotifier{hub: h, id: id}
}

// ClientNotifier implements the pipeline's progress callback for one
// connection. The zero value discards everything.
type ClientNotifier struct {
	hub *Hub
	id  uuid.UUID
}

// Notify queues a message frame. It never blocks: unknown connections and
// full buffers drop the message.
func (n ClientNotifier) Notify(_ context.Context, message string) {
	if n.hub == nil {
		return
	}
	n.hub.mu.RLock()
	c, ok := n.hub.conns[n.id]
	n.hub.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(frame{Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		n.hub.log.Debug("progress message dropped", "connection_id", n.id)
	}
}
