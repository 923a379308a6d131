package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tablebot/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// upgrader WebSocket upgrader; the feed sits behind JWT auth, any origin is allowed
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedHub streams events to connected helper dashboards.
type FeedHub struct {
	clients         map[*FeedClient]bool
	mu              sync.RWMutex
	connectionCount int32
	maxConnections  int32
	log             *zap.Logger
}

// FeedClient one websocket connection
type FeedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewFeedHub creates a hub accepting up to maxConnections clients.
func NewFeedHub(maxConnections int, log *zap.Logger) *FeedHub {
	return &FeedHub{
		clients:        make(map[*FeedClient]bool),
		maxConnections: int32(maxConnections),
		log:            log.With(zap.String("component", "feed")),
	}
}

// Serve upgrades the request and streams events until the client goes away.
func (h *FeedHub) Serve(w http.ResponseWriter, r *http.Request) error {
	if atomic.LoadInt32(&h.connectionCount) >= h.maxConnections {
		http.Error(w, "too many feed connections", http.StatusServiceUnavailable)
		return nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &FeedClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(client)

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// HandleEvent is an EventHandler broadcasting e as JSON.
func (h *FeedHub) HandleEvent(_ context.Context, e models.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("marshal feed event", zap.Error(err))
		return
	}
	h.Broadcast(data)
}

// Broadcast queues message for every client; slow clients skip it.
func (h *FeedHub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.log.Debug("feed client buffer full, dropping message")
		}
	}
}

// GetConnectionCount returns the number of connected clients.
func (h *FeedHub) GetConnectionCount() int {
	return int(atomic.LoadInt32(&h.connectionCount))
}

// Close disconnects every client.
func (h *FeedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		atomic.AddInt32(&h.connectionCount, -1)
	}
}

func (h *FeedHub) register(client *FeedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	n := atomic.AddInt32(&h.connectionCount, 1)
	h.log.Info("feed client connected", zap.Int32("connections", n))
}

func (h *FeedHub) unregister(client *FeedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		n := atomic.AddInt32(&h.connectionCount, -1)
		h.log.Info("feed client disconnected", zap.Int32("connections", n))
	}
}

// writePump drains client.send into the connection and keeps it alive with pings.
func (h *FeedHub) writePump(client *FeedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close and pong frames; the feed is one-way.
func (h *FeedHub) readPump(client *FeedClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4 * 1024)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("feed client read error", zap.Error(err))
			}
			return
		}
	}
}
