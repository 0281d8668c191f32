package websocket

import (
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
)

// Message types for WebSocket communication
const (
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"

	// Marketplace events share the auction engine's names so the engine's
	// realtime fan-out and handler-originated messages stay on one wire
	// vocabulary.
	MessageTypeBidPlaced    = marketplace.EventBidPlaced
	MessageTypeOutbid       = marketplace.EventOutbid
	MessageTypeAuctionWon   = marketplace.EventAuctionWon
	MessageTypeAuctionEnded = marketplace.EventAuctionEnded

	// Location events
	MessageTypeLocationShared  = "location_shared"
	MessageTypeLocationStopped = "location_stopped"
	MessageTypeShoutoutCreated = "shoutout_created"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
