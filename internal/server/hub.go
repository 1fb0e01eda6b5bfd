package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/timecat/internal/ir"
	"github.com/roach88/timecat/internal/pipeline"
)

const (
	liveBuffer   = 256
	writeTimeout = 10 * time.Second
)

// LiveMessage is what live subscribers receive for every record.
type LiveMessage struct {
	StoreKey string    `json:"storeKey"`
	Record   ir.Record `json:"record"`
}

// Hub fans records out to live websocket subscribers. A subscriber that
// falls liveBuffer messages behind loses the messages that do not fit.
//
// Thread-safety: safe for concurrent use.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*liveClient]struct{})}
}

// Stage returns a pipeline stage that broadcasts every record of the
// partition key.
func (h *Hub) Stage(key string) pipeline.Stage {
	return pipeline.Passthrough(func(_ context.Context, rec ir.Record) {
		h.Broadcast(LiveMessage{StoreKey: key, Record: rec})
	})
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("live message not encoded", "store_key", msg.StoreKey, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("live subscriber lagging, message dropped", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve registers conn and blocks until it closes. Incoming messages are
// read only to notice the close.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &liveClient{conn: conn, send: make(chan []byte, liveBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go c.writeLoop(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live subscriber read failed", "error", err)
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
}

// writeLoop is the only writer of c.conn.
func (c *liveClient) writeLoop(done <-chan struct{}) {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}
