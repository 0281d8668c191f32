package handlers

import (
	"net/http"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/Abdullah-z/instaBook-Server/internal/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const (
	defaultLocationTTL = time.Hour
	maxLocationTTL     = 24 * time.Hour
	shoutoutTTL        = 24 * time.Hour
)

type shareLocationRequest struct {
	Latitude   float64 `json:"latitude" binding:"required"`
	Longitude  float64 `json:"longitude" binding:"required"`
	Visibility string  `json:"visibility"`
	TTLMinutes int     `json:"ttl_minutes"`
}

// ShareLocation starts or refreshes the caller's live location broadcast.
// One row per user: re-sharing moves the pin and resets the expiry.
func (h *Handlers) ShareLocation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req shareLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	visibility := req.Visibility
	switch visibility {
	case "":
		visibility = models.VisibilityFriends
	case models.VisibilityFriends, models.VisibilityPublic:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "visibility must be friends or public"})
		return
	}

	ttl := defaultLocationTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
		if ttl > maxLocationTTL {
			ttl = maxLocationTTL
		}
	}

	location := models.SharedLocation{
		UserID:     user.ID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Visibility: visibility,
		ExpiresAt:  time.Now().Add(ttl),
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latitude", "longitude", "visibility", "expires_at", "updated_at",
		}),
	}).Create(&location).Error
	if err != nil {
		logger.Log.Error("Failed to share location",
			logger.WithUserID(user.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to share location"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(websocket.MessageTypeLocationShared, gin.H{
			"user_id":    user.ID,
			"latitude":   req.Latitude,
			"longitude":  req.Longitude,
			"expires_at": location.ExpiresAt,
		}))
	}

	c.JSON(http.StatusOK, location)
}

// StopSharingLocation removes the caller's live location immediately
func (h *Handlers) StopSharingLocation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	result := database.DB.Where("user_id = ?", user.ID).Delete(&models.SharedLocation{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop sharing"})
		return
	}

	if result.RowsAffected > 0 && h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(websocket.MessageTypeLocationStopped, gin.H{
			"user_id": user.ID,
		}))
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// GetSharedLocations lists active public location broadcasts
func (h *Handlers) GetSharedLocations(c *gin.Context) {
	var locations []models.SharedLocation
	if err := database.DB.Preload("User").
		Where("expires_at > ? AND visibility = ?", time.Now(), models.VisibilityPublic).
		Find(&locations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load locations"})
		return
	}
	c.JSON(http.StatusOK, locations)
}

type createShoutoutRequest struct {
	Content   string  `json:"content" binding:"required,max=200"`
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// CreateShoutout drops an ephemeral location-tagged message that lives for
// 24 hours
func (h *Handlers) CreateShoutout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createShoutoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	shoutout := models.Shoutout{
		UserID:    user.ID,
		Content:   req.Content,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		ExpiresAt: time.Now().Add(shoutoutTTL),
	}
	if err := database.DB.Create(&shoutout).Error; err != nil {
		logger.Log.Error("Failed to create shoutout", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create shoutout"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(websocket.MessageTypeShoutoutCreated, gin.H{
			"id":        shoutout.ID,
			"user_id":   user.ID,
			"latitude":  req.Latitude,
			"longitude": req.Longitude,
		}))
	}

	c.JSON(http.StatusCreated, shoutout)
}

// GetShoutouts lists unexpired shoutouts, newest first
func (h *Handlers) GetShoutouts(c *gin.Context) {
	var shoutouts []models.Shoutout
	if err := database.DB.Preload("User").
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Limit(200).
		Find(&shoutouts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load shoutouts"})
		return
	}
	c.JSON(http.StatusOK, shoutouts)
}
