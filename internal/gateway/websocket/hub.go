// Package websocket streams session output and resolution notifications to
// UI clients over a single WebSocket endpoint.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	ws "github.com/kapjain-rh/error-resolver/pkg/websocket"
)

// Hub tracks connected clients and their per-session output subscriptions.
// Resolution notifications go to every client; session output only to the
// clients subscribed to that session.
type Hub struct {
	clients            map[*Client]bool
	sessionSubscribers map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *ws.Message

	dispatcher *ws.Dispatcher

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a hub routing request frames through the given dispatcher.
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		sessionSubscribers: make(map[string]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		broadcast:          make(chan *ws.Message, 256),
		dispatcher:         dispatcher,
		logger:             log.WithFields(zap.String("component", "ws-hub")),
	}
}

// Run is the hub's main loop; it returns when ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer h.logger.Info("websocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.sessionSubscribers = make(map[string]map[*Client]bool)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for sessionID := range client.subscriptions {
		if subs, ok := h.sessionSubscribers[sessionID]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.sessionSubscribers, sessionID)
			}
		}
	}
	h.logger.Debug("client disconnected", zap.String("client_id", client.ID))
}

func (h *Hub) broadcastMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Buffer full; the write pump will reap the client.
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast pushes a notification frame to every connected client.
func (h *Hub) Broadcast(msg *ws.Message) {
	h.broadcast <- msg
}

// SendToSession pushes a frame to the clients subscribed to one session.
func (h *Hub) SendToSession(sessionID string, msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal session frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	subs := h.sessionSubscribers[sessionID]
	h.mu.RUnlock()

	for client := range subs {
		select {
		case client.send <- data:
		default:
		}
	}
}

// SubscribeToSession routes a session's output frames to the client.
func (h *Hub) SubscribeToSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessionSubscribers[sessionID]; !ok {
		h.sessionSubscribers[sessionID] = make(map[*Client]bool)
	}
	h.sessionSubscribers[sessionID][client] = true
	client.subscriptions[sessionID] = true
}

// UnsubscribeFromSession stops routing a session's output to the client.
func (h *Hub) UnsubscribeFromSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.subscriptions, sessionID)
	if subs, ok := h.sessionSubscribers[sessionID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.sessionSubscribers, sessionID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
