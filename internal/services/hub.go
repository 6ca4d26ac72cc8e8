package services

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const hubWriteTimeout = 5 * time.Second

// Hub fans JSON messages out to connected websocket clients. Slow or broken
// clients are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	ch      chan any
	logger  *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: map[*websocket.Conn]bool{},
		ch:      make(chan any, buffer),
		logger:  logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case msg := <-h.ch:
			h.deliver(msg)
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("dropping websocket client", zap.Error(err))
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Broadcast queues msg without blocking; it is dropped when the buffer is full.
func (h *Hub) Broadcast(msg any) {
	if h == nil {
		return
	}
	select {
	case h.ch <- msg:
	default:
		h.logger.Warn("hub buffer full, dropping message")
	}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
