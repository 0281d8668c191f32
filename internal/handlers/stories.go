package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const storyTTL = 24 * time.Hour

// CreateStory posts a story that expires 24 hours from now. Text, images,
// or both.
func (h *Handlers) CreateStory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	content := c.PostForm("content")

	var images models.StringArray
	if form, err := c.MultipartForm(); err == nil {
		files := form.File["images"]
		for _, file := range files {
			if file.Size > maxImageSize {
				c.JSON(http.StatusBadRequest, gin.H{"error": "images must be under 10MB"})
				return
			}
		}
		if len(files) > 0 {
			if h.storage == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage unavailable"})
				return
			}
			images, err = h.uploadImages(c.Request.Context(), files, user.ID)
			if err != nil {
				logger.Log.Error("Story image upload failed",
					logger.WithUserID(user.ID),
					zap.Error(err),
				)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload images"})
				return
			}
		}
	}

	if content == "" && len(images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "story needs content or images"})
		return
	}

	story := models.Story{
		UserID:    user.ID,
		Content:   content,
		Images:    images,
		ExpiresAt: time.Now().Add(storyTTL),
	}
	if err := database.DB.Create(&story).Error; err != nil {
		logger.Log.Error("Failed to create story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create story"})
		return
	}

	c.JSON(http.StatusCreated, story)
}

// GetStories returns all unexpired stories, newest first
func (h *Handlers) GetStories(c *gin.Context) {
	var stories []models.Story
	if err := database.DB.Preload("User").
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Find(&stories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stories"})
		return
	}
	c.JSON(http.StatusOK, stories)
}

// ViewStory records a view and returns the story
func (h *Handlers) ViewStory(c *gin.Context) {
	var story models.Story
	err := database.DB.Preload("User").
		Where("expires_at > ?", time.Now()).
		First(&story, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load story"})
		return
	}

	database.DB.Model(&story).UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	story.ViewCount++

	c.JSON(http.StatusOK, story)
}

// DeleteStory lets the owner take a story down before it expires. Media is
// deleted inline since the record never reaches the sweep.
func (h *Handlers) DeleteStory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var story models.Story
	if err := database.DB.First(&story, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	if story.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your story"})
		return
	}

	if h.storage != nil {
		for _, key := range story.Images {
			if err := h.storage.DeleteFile(c.Request.Context(), key); err != nil {
				logger.Log.Warn("Failed to delete story media",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}
	}

	if err := database.DB.Delete(&story).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete story"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
