package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 64
	maxMessageSize = 32 * 1024
	writeWait      = 10 * time.Second
	pingPeriod     = 45 * time.Second
)

// Client is one live WebSocket connection for a user
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	UserID   string
	Username string

	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wraps an accepted connection
func NewClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		conn:     conn,
		UserID:   userID,
		Username: username,
		send:     make(chan []byte, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ReadPump pumps messages from the connection. The only client-to-server
// traffic is ping; everything else flows server-to-client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				c.ctx.Err() == nil {
				logger.Log.Warn("WebSocket read error",
					logger.WithUserID(c.UserID),
					zap.Error(err),
				)
			}
			return
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}

		if message.Type == MessageTypePing {
			c.Send(NewMessage(MessageTypePong, nil))
		}
	}
}

// WritePump pumps queued messages out to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Send queues a message for delivery, dropping it if the buffer is full
func (c *Client) Send(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close tears down the connection
func (c *Client) Close() {
	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}
