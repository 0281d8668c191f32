package handlers

import (
	"github.com/Abdullah-z/instaBook-Server/internal/auth"
	"github.com/Abdullah-z/instaBook-Server/internal/cleanup"
	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
	"github.com/Abdullah-z/instaBook-Server/internal/storage"
	"github.com/Abdullah-z/instaBook-Server/internal/websocket"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth    *auth.Service
	engine  *marketplace.Engine
	storage *storage.S3Store
	hub     *websocket.Hub
	cleanup *cleanup.Service
}

// NewHandlers creates a new handlers instance. storage and hub may be nil
// when the server runs without S3 or realtime, handlers degrade gracefully.
func NewHandlers(authService *auth.Service, engine *marketplace.Engine) *Handlers {
	return &Handlers{
		auth:   authService,
		engine: engine,
	}
}

// SetStorage wires the media store for upload/delete endpoints
func (h *Handlers) SetStorage(store *storage.S3Store) {
	h.storage = store
}

// SetHub wires the websocket hub for realtime events
func (h *Handlers) SetHub(hub *websocket.Hub) {
	h.hub = hub
}

// publish pushes a realtime event to one user if the hub is wired
func (h *Handlers) publish(userID, event string, payload interface{}) {
	if h.hub == nil {
		return
	}
	h.hub.SendToUser(userID, websocket.NewMessage(event, payload))
}
