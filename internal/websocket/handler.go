package websocket

import (
	"net/http"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to WebSocket connections
type Handler struct {
	hub *Hub
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleWebSocket upgrades the request and runs the connection pumps.
// Authentication happens in the auth middleware, which supports both the
// Authorization header and a ?token= query param for browser clients.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userValue, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, ok := userValue.(*models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origins are filtered by the CORS middleware
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed",
			logger.WithUserID(user.ID),
			zap.Error(err),
		)
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.Username)
	h.hub.Register(client)

	client.Send(NewMessage(MessageTypeSystem, map[string]interface{}{
		"event":       "connected",
		"user_id":     user.ID,
		"server_time": time.Now().UTC().UnixMilli(),
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// HandleStats reports connection counts for the admin surface
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_connections": h.hub.ActiveConnections.Load(),
		"total_connections":  h.hub.TotalConnections.Load(),
		"messages_sent":      h.hub.MessagesSent.Load(),
	})
}
