package handlers

import (
	"net/http"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/cleanup"
	"github.com/gin-gonic/gin"
)

// SetCleanup wires the cleanup service for the admin sweep endpoint
func (h *Handlers) SetCleanup(service *cleanup.Service) {
	h.cleanup = service
}

// ForceSettle runs a settlement pass immediately (admin only)
func (h *Handlers) ForceSettle(c *gin.Context) {
	if err := h.engine.SettleExpiredAuctions(c.Request.Context(), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "settled"})
}

// ForceSweep runs a cleanup sweep immediately (admin only)
func (h *Handlers) ForceSweep(c *gin.Context) {
	if h.cleanup == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cleanup service not running"})
		return
	}
	h.cleanup.Sweep(c.Request.Context(), time.Now())
	c.JSON(http.StatusOK, gin.H{"status": "swept"})
}
