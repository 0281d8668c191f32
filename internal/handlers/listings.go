package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/Abdullah-z/instaBook-Server/internal/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateListing creates a marketplace listing from a multipart form.
// At least one image is required.
func (h *Handlers) CreateListing(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	name := c.PostForm("name")
	description := c.PostForm("description")
	if name == "" || description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and description are required"})
		return
	}

	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a positive number"})
		return
	}

	listingType := c.PostForm("listing_type")
	if listingType == "" {
		listingType = models.ListingTypeSell
	}
	switch listingType {
	case models.ListingTypeSell, models.ListingTypeBid, models.ListingTypeBoth:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_type must be Sell, Bid or Both"})
		return
	}

	var bidEndTime *time.Time
	if endStr := c.PostForm("bid_end_time"); endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bid_end_time must be RFC3339"})
			return
		}
		if end.Before(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bid_end_time must be in the future"})
			return
		}
		bidEndTime = &end
	}
	if listingType != models.ListingTypeSell && bidEndTime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auction listings need a bid_end_time"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image is required"})
		return
	}
	files := form.File["images"]
	for _, file := range files {
		if file.Size > maxImageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "images must be under 10MB"})
			return
		}
	}

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage unavailable"})
		return
	}
	images, err := h.uploadImages(c.Request.Context(), files, user.ID)
	if err != nil {
		logger.Log.Error("Image upload failed",
			logger.WithUserID(user.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload images"})
		return
	}

	latitude, _ := strconv.ParseFloat(c.PostForm("latitude"), 64)
	longitude, _ := strconv.ParseFloat(c.PostForm("longitude"), 64)

	listing := models.Listing{
		UserID:      user.ID,
		Name:        name,
		Description: description,
		Price:       price,
		Category:    c.DefaultPostForm("category", "Other"),
		Images:      images,
		Address:     c.PostForm("address"),
		Latitude:    latitude,
		Longitude:   longitude,
		Phone:       c.PostForm("phone"),
		ListingType: listingType,
		BidEndTime:  bidEndTime,
	}
	if err := database.DB.Create(&listing).Error; err != nil {
		logger.Log.Error("Failed to create listing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create listing"})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// GetListings lists unsold listings, newest first, with optional category
// and type filters.
func (h *Handlers) GetListings(c *gin.Context) {
	query := database.DB.Preload("User").
		Where("is_sold = ?", false).
		Order("created_at DESC")

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if listingType := c.Query("listing_type"); listingType != "" {
		query = query.Where("listing_type = ?", listingType)
	}

	var listings []models.Listing
	if err := query.Limit(100).Find(&listings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listings"})
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GetMyListings lists everything the caller has posted, sold items included
func (h *Handlers) GetMyListings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var listings []models.Listing
	if err := database.DB.
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listings"})
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GetListing returns one listing with its bid history
func (h *Handlers) GetListing(c *gin.Context) {
	var listing models.Listing
	err := database.DB.Preload("User").Preload("HighestBidder").
		Preload("Bids", func(db *gorm.DB) *gorm.DB {
			return db.Order("bids.created_at ASC")
		}).
		Preload("Bids.Bidder").
		First(&listing, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listing"})
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UpdateListing lets the owner edit the descriptive fields of an unsold
// listing. Price and auction state are immutable once bids exist.
func (h *Handlers) UpdateListing(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var listing models.Listing
	if err := database.DB.First(&listing, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if listing.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your listing"})
		return
	}
	if listing.IsSold {
		c.JSON(http.StatusConflict, gin.H{"error": "listing already sold"})
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
		Address     *string  `json:"address"`
		Phone       *string  `json:"phone"`
		Price       *float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
			return
		}
		if listing.CurrentBid > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "cannot change price after bidding started"})
			return
		}
		updates["price"] = *req.Price
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, listing)
		return
	}

	if err := database.DB.Model(&listing).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update listing"})
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing removes the owner's listing and purges its media
func (h *Handlers) DeleteListing(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var listing models.Listing
	if err := database.DB.First(&listing, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if listing.UserID != user.ID && !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your listing"})
		return
	}

	if err := database.DB.Where("listing_id = ?", listing.ID).Delete(&models.Bid{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete listing"})
		return
	}
	if err := database.DB.Delete(&listing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete listing"})
		return
	}

	// Media purge is best-effort; orphaned objects are cheap, broken
	// listings are not.
	if h.storage != nil {
		go func(images models.StringArray, userID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			for _, key := range images {
				if err := h.storage.DeleteFile(ctx, key); err != nil {
					logger.Log.Warn("Failed to delete listing media",
						logger.WithUserID(userID),
						zap.String("key", key),
						zap.Error(err),
					)
				}
			}
		}(listing.Images, user.ID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// MarkAsSold toggles the sold flag on the owner's listing. Selling starts
// the media retention clock; un-selling is only allowed before the auction
// settles.
func (h *Handlers) MarkAsSold(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Sold bool `json:"sold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var listing models.Listing
	if err := database.DB.First(&listing, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if listing.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your listing"})
		return
	}

	var (
		updated *models.Listing
		err     error
	)
	if req.Sold {
		updated, err = h.engine.MarkSold(c.Request.Context(), listing.ID)
	} else {
		updated, err = h.engine.MarkUnsold(c.Request.Context(), listing.ID)
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, updated)
	case errors.Is(err, marketplace.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
	case errors.Is(err, marketplace.ErrListingSold):
		c.JSON(http.StatusConflict, gin.H{"error": "listing already sold"})
	case errors.Is(err, marketplace.ErrAuctionSettled):
		c.JSON(http.StatusConflict, gin.H{"error": "auction already settled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update listing"})
	}
}

// PlaceBid submits a bid through the auction engine and maps its typed
// rejections onto HTTP statuses
func (h *Handlers) PlaceBid(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, outcome, err := h.engine.PlaceBid(c.Request.Context(), c.Param("id"), user.ID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, marketplace.ErrListingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, marketplace.ErrInvalidAmount),
			errors.Is(err, marketplace.ErrBidTooLow),
			errors.Is(err, marketplace.ErrBidAboveAsking):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, marketplace.ErrListingSold),
			errors.Is(err, marketplace.ErrNotBiddable),
			errors.Is(err, marketplace.ErrBiddingClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.Log.Error("Bid failed",
				logger.WithUserID(user.ID),
				logger.WithListingID(c.Param("id")),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place bid"})
		}
		return
	}

	// Tell the seller in realtime; outbid fanout is the engine's job.
	h.publish(listing.UserID, websocket.MessageTypeBidPlaced, gin.H{
		"listing_id": listing.ID,
		"amount":     req.Amount,
		"bidder_id":  user.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"listing": listing,
		"outcome": outcome,
	})
}

// GetBidHistory returns a listing's bids, oldest first
func (h *Handlers) GetBidHistory(c *gin.Context) {
	var bids []models.Bid
	if err := database.DB.Preload("Bidder").
		Where("listing_id = ?", c.Param("id")).
		Order("created_at ASC").
		Find(&bids).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bids"})
		return
	}
	c.JSON(http.StatusOK, bids)
}
