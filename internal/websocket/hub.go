package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"yt-dataset-harvester/internal/middleware"
	"yt-dataset-harvester/internal/models"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket subscriber. Only its writer goroutine writes to conn.
type client struct {
	conn    *websocket.Conn
	send    chan []byte
	dropped int
}

// Hub fans harvest progress out to websocket clients. Events arrive either
// in-process through Report or from other harvester processes over Redis.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]*client
	auth        *middleware.JWTAuth
}

func NewHub(auth *middleware.JWTAuth) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]*client),
		auth:        auth,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// browsers cannot set headers on the upgrade request, so the token is a query param
	if h.auth != nil && h.auth.Enabled() {
		if _, err := h.auth.Verify(r.URL.Query().Get("token")); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := h.registerConnection(conn)
	go c.writePump()

	go func() {
		defer h.unregisterConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// writePump drains the send queue. A write that misses its deadline closes the
// connection, which ends the read loop and unregisters the client.
func (c *client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			c.conn.Close()
			return
		}
	}
}

func (h *Hub) registerConnection(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.connections[conn] = c
	log.Printf("WebSocket connected (total: %d)", len(h.connections))
	return c
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	if c, ok := h.connections[conn]; ok {
		close(c.send)
		delete(h.connections, conn)
	}
	log.Printf("WebSocket disconnected (total: %d)", len(h.connections))
}

func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Report broadcasts a progress event to every connected client.
func (h *Hub) Report(ctx context.Context, ev models.ProgressEvent) {
	data, err := json.Marshal(models.WSMessage{Type: ev.Type, Payload: ev})
	if err != nil {
		return
	}
	h.broadcast(data)
}

// SubscribeRedis relays every harvest_updates:* message until ctx is done.
func (h *Hub) SubscribeRedis(ctx context.Context, client *redis.Client, pattern string) {
	pubsub := client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

// broadcast queues data for every client without blocking. A client whose queue
// is full misses the event.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.connections {
		select {
		case c.send <- data:
		default:
			if c.dropped++; c.dropped == 1 {
				log.Printf("WebSocket client %s is behind, dropping events", c.conn.RemoteAddr())
			}
		}
	}
}
