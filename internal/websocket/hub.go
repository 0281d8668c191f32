// Package websocket is the realtime side-channel: a process-wide registry
// of live connections keyed by user id, with explicit register-on-connect
// and unregister-on-disconnect transitions.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"go.uber.org/zap"
)

// Hub maintains the set of active clients and routes messages to them.
// A user may hold several connections (multiple devices).
type Hub struct {
	clients    map[string]map[*Client]struct{}
	allClients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	unicast    chan *unicastMessage

	mu sync.RWMutex

	// Counters exposed on the metrics endpoint
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	MessagesSent      atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

type unicastMessage struct {
	userID  string
	message *Message
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		allClients: make(map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *Message, 256),
		unicast:    make(chan *unicastMessage, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		case uc := <-h.unicast:
			h.deliverToUser(uc.userID, uc.message)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Broadcast sends a message to every connected client
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SendToUser sends a message to every connection a user holds. Silently a
// no-op when the user is offline; push notifications cover that case.
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &unicastMessage{userID: userID, message: message}:
	case <-h.ctx.Done():
	}
}

// PublishToUser adapts the hub to the engines' EventPublisher interface
func (h *Hub) PublishToUser(userID, event string, payload interface{}) {
	h.SendToUser(userID, NewMessage(event, payload))
}

// IsOnline reports whether a user has at least one live connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Shutdown closes every connection and stops the event loop
func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.allClients[client] = struct{}{}

	h.TotalConnections.Add(1)
	h.ActiveConnections.Add(1)

	logger.Log.Info("Client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.ActiveConnections.Load()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	if clients, ok := h.clients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
		}
	}

	close(client.send)
	h.ActiveConnections.Add(-1)

	logger.Log.Info("Client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.ActiveConnections.Load()),
	)
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.allClients {
		h.send(client, data)
	}
}

func (h *Hub) deliverToUser(userID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal unicast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		h.send(client, data)
	}
}

// send queues data on a client, dropping the connection if its buffer is
// full (a stuck reader must not block the hub).
func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.MessagesSent.Add(1)
	default:
		go h.Unregister(client)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Log.Info("WebSocket hub shutting down",
		zap.Int("connections", len(h.allClients)),
	)

	for client := range h.allClients {
		close(client.send)
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
}
