package websocket

import (
	"context"
	"log/slog"
	"sync"
)

// Hub tracks the live websocket clients so shutdown can close them all.
// Protocol state lives in the gateway; the hub is transport bookkeeping
// only.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("client registered", "connID", client.connID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSendChannel()
			}
			h.mu.Unlock()
			slog.Debug("client unregistered", "connID", client.connID)

		case <-h.ctx.Done():
			h.closeAll()
			slog.Info("websocket hub stopped")
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
		client.conn.Close()
		delete(h.clients, client)
	}
}
