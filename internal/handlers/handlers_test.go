package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/auth"
	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// HandlersTestSuite exercises the JSON endpoints against an in-memory DB
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	engine   *marketplace.Engine
	seller   *models.User
	buyer    *models.User
}

func (suite *HandlersTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(suite.T(), err)

	// A :memory: DSN gives every pooled connection its own database,
	// so pin the pool to a single connection.
	sqlDB, err := db.DB()
	require.NoError(suite.T(), err)
	sqlDB.SetMaxOpenConns(1)

	suite.createTables(db)

	suite.db = db
	database.DB = db

	suite.engine = marketplace.NewEngine(db, nil, 24*time.Hour)
	suite.handlers = NewHandlers(auth.NewService([]byte("test-secret")), suite.engine)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.setupRoutes()

	suite.seller = suite.createUser("seller")
	suite.buyer = suite.createUser("buyer")
}

func (suite *HandlersTestSuite) TearDownTest() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *HandlersTestSuite) createTables(db *gorm.DB) {
	// SQLite-compatible DDL; AutoMigrate uses PostgreSQL-specific types.
	statements := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			username TEXT NOT NULL,
			full_name TEXT NOT NULL,
			password_hash TEXT,
			avatar_url TEXT,
			bio TEXT,
			push_token TEXT,
			is_admin INTEGER DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE listings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			price REAL NOT NULL,
			category TEXT,
			images TEXT,
			address TEXT,
			latitude REAL,
			longitude REAL,
			phone TEXT,
			is_sold INTEGER DEFAULT 0,
			sold_at DATETIME,
			delete_at DATETIME,
			listing_type TEXT DEFAULT 'Sell',
			current_bid REAL DEFAULT 0,
			highest_bidder_id TEXT,
			bid_end_time DATETIME,
			auction_completed INTEGER DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE bids (
			id TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL,
			bidder_id TEXT NOT NULL,
			amount REAL NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE stories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT,
			images TEXT,
			expires_at DATETIME NOT NULL,
			view_count INTEGER DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE shared_locations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			visibility TEXT DEFAULT 'friends',
			expires_at DATETIME NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE shoutouts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			visibility TEXT DEFAULT 'public',
			expires_at DATETIME NOT NULL,
			created_at DATETIME
		)`,
	}
	for _, stmt := range statements {
		require.NoError(suite.T(), db.Exec(stmt).Error)
	}
}

// setupRoutes wires routes behind a header-based test auth middleware
func (suite *HandlersTestSuite) setupRoutes() {
	authMiddleware := func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		var user models.User
		if err := suite.db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Set("user_id", user.ID)
		c.Set("user", &user)
		c.Next()
	}

	api := suite.router.Group("/api/v1")
	api.POST("/auth/register", suite.handlers.Register)
	api.POST("/auth/login", suite.handlers.Login)

	authed := api.Group("")
	authed.Use(authMiddleware)
	authed.GET("/listings", suite.handlers.GetListings)
	authed.GET("/listings/:id", suite.handlers.GetListing)
	authed.PUT("/listings/:id", suite.handlers.UpdateListing)
	authed.PUT("/listings/:id/sold", suite.handlers.MarkAsSold)
	authed.POST("/listings/:id/bids", suite.handlers.PlaceBid)
	authed.GET("/listings/:id/bids", suite.handlers.GetBidHistory)
	authed.POST("/locations", suite.handlers.ShareLocation)
	authed.DELETE("/locations", suite.handlers.StopSharingLocation)
	authed.GET("/locations", suite.handlers.GetSharedLocations)
	authed.POST("/shoutouts", suite.handlers.CreateShoutout)
	authed.GET("/shoutouts", suite.handlers.GetShoutouts)
	authed.POST("/stories/:id/view", suite.handlers.ViewStory)
}

func (suite *HandlersTestSuite) createUser(name string) *models.User {
	user := &models.User{
		Email:    fmt.Sprintf("%s@test.com", name),
		Username: name,
		FullName: name,
	}
	require.NoError(suite.T(), suite.db.Create(user).Error)
	return user
}

func (suite *HandlersTestSuite) createAuction(price float64) *models.Listing {
	end := time.Now().UTC().Add(time.Hour)
	listing := &models.Listing{
		UserID:      suite.seller.ID,
		Name:        "Mountain Bike",
		Description: "some scratches",
		Price:       price,
		ListingType: models.ListingTypeBid,
		BidEndTime:  &end,
	}
	require.NoError(suite.T(), suite.db.Create(listing).Error)
	return listing
}

func (suite *HandlersTestSuite) request(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestRegisterAndLogin() {
	t := suite.T()

	w := suite.request("POST", "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "new@test.com",
		"username":  "newuser",
		"full_name": "New User",
		"password":  "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])

	w = suite.request("POST", "/api/v1/auth/login", "", map[string]interface{}{
		"email":    "new@test.com",
		"password": "supersecret",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = suite.request("POST", "/api/v1/auth/login", "", map[string]interface{}{
		"email":    "new@test.com",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestRegisterDuplicateEmail() {
	t := suite.T()

	body := map[string]interface{}{
		"email":     "dup@test.com",
		"username":  "dupuser",
		"full_name": "Dup User",
		"password":  "supersecret",
	}
	w := suite.request("POST", "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = suite.request("POST", "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestPlaceBidEndpoint() {
	t := suite.T()
	listing := suite.createAuction(100)

	w := suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Listing models.Listing `json:"listing"`
		Outcome string         `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 50.0, resp.Listing.CurrentBid)
	assert.Equal(t, string(marketplace.OutcomeBid), resp.Outcome)
}

func (suite *HandlersTestSuite) TestPlaceBidRejectionsMapToStatuses() {
	t := suite.T()
	listing := suite.createAuction(100)

	// Seed a bid so there is a current bid to undercut
	w := suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 50})
	require.Equal(t, http.StatusOK, w.Code)

	// Too low → 400
	w = suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 40})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Above asking → 400
	w = suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown listing → 404
	w = suite.request("POST", "/api/v1/listings/does-not-exist/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 60})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Sold listing → 409
	require.NoError(t, suite.db.Model(&models.Listing{}).
		Where("id = ?", listing.ID).Update("is_sold", true).Error)
	w = suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 60})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestInstantBuyThroughEndpoint() {
	t := suite.T()
	listing := suite.createAuction(100)

	w := suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Listing models.Listing `json:"listing"`
		Outcome string         `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(marketplace.OutcomeSoldByBid), resp.Outcome)
	assert.True(t, resp.Listing.IsSold)
	require.NotNil(t, resp.Listing.DeleteAt)
}

func (suite *HandlersTestSuite) TestMarkAsSoldSetsRetention() {
	t := suite.T()
	listing := &models.Listing{
		UserID:      suite.seller.ID,
		Name:        "Lamp",
		Description: "works fine",
		Price:       25,
		ListingType: models.ListingTypeSell,
	}
	require.NoError(t, suite.db.Create(listing).Error)

	w := suite.request("PUT", "/api/v1/listings/"+listing.ID+"/sold", suite.seller.ID,
		map[string]interface{}{"sold": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Listing
	require.NoError(t, suite.db.First(&updated, "id = ?", listing.ID).Error)
	assert.True(t, updated.IsSold)
	require.NotNil(t, updated.DeleteAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *updated.DeleteAt, time.Minute)

	// Only the owner can toggle
	w = suite.request("PUT", "/api/v1/listings/"+listing.ID+"/sold", suite.buyer.ID,
		map[string]interface{}{"sold": false})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Selling an already-sold listing conflicts instead of restarting
	// the retention clock.
	w = suite.request("PUT", "/api/v1/listings/"+listing.ID+"/sold", suite.seller.ID,
		map[string]interface{}{"sold": true})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestMarkAsSoldCannotRevertSettledAuction() {
	t := suite.T()
	listing := suite.createAuction(100)

	w := suite.request("POST", "/api/v1/listings/"+listing.ID+"/bids", suite.buyer.ID,
		map[string]interface{}{"amount": 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Settle the auction, then try to un-sell it out from under the winner.
	now := time.Now().UTC()
	require.NoError(t, suite.db.Model(&models.Listing{}).Where("id = ?", listing.ID).
		Update("bid_end_time", now.Add(-time.Minute)).Error)
	require.NoError(t, suite.engine.SettleExpiredAuctions(context.Background(), now))

	w = suite.request("PUT", "/api/v1/listings/"+listing.ID+"/sold", suite.seller.ID,
		map[string]interface{}{"sold": false})
	assert.Equal(t, http.StatusConflict, w.Code)

	var reloaded models.Listing
	require.NoError(t, suite.db.First(&reloaded, "id = ?", listing.ID).Error)
	assert.True(t, reloaded.IsSold)
	require.NotNil(t, reloaded.DeleteAt)
}

func (suite *HandlersTestSuite) TestUpdateListingOwnerOnly() {
	t := suite.T()
	listing := suite.createAuction(100)

	w := suite.request("PUT", "/api/v1/listings/"+listing.ID, suite.buyer.ID,
		map[string]interface{}{"name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = suite.request("PUT", "/api/v1/listings/"+listing.ID, suite.seller.ID,
		map[string]interface{}{"name": "Renamed Bike"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Listing
	require.NoError(t, suite.db.First(&updated, "id = ?", listing.ID).Error)
	assert.Equal(t, "Renamed Bike", updated.Name)
}

func (suite *HandlersTestSuite) TestShareLocationUpserts() {
	t := suite.T()

	w := suite.request("POST", "/api/v1/locations", suite.buyer.ID, map[string]interface{}{
		"latitude":   52.52,
		"longitude":  13.405,
		"visibility": "public",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Re-sharing moves the pin instead of adding a second row
	w = suite.request("POST", "/api/v1/locations", suite.buyer.ID, map[string]interface{}{
		"latitude":   48.856,
		"longitude":  2.352,
		"visibility": "public",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var locations []models.SharedLocation
	require.NoError(t, suite.db.Where("user_id = ?", suite.buyer.ID).Find(&locations).Error)
	require.Len(t, locations, 1)
	assert.InDelta(t, 48.856, locations[0].Latitude, 0.001)

	w = suite.request("DELETE", "/api/v1/locations", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count int64
	suite.db.Model(&models.SharedLocation{}).Where("user_id = ?", suite.buyer.ID).Count(&count)
	assert.Zero(t, count)
}

func (suite *HandlersTestSuite) TestShoutoutLifecycle() {
	t := suite.T()

	w := suite.request("POST", "/api/v1/shoutouts", suite.buyer.ID, map[string]interface{}{
		"content":   "Free couch on 5th street!",
		"latitude":  40.73,
		"longitude": -73.99,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = suite.request("GET", "/api/v1/shoutouts", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var shoutouts []models.Shoutout
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shoutouts))
	require.Len(t, shoutouts, 1)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), shoutouts[0].ExpiresAt, time.Minute)
}

func (suite *HandlersTestSuite) TestViewStoryCountsViews() {
	t := suite.T()
	story := &models.Story{
		UserID:    suite.seller.ID,
		Content:   "at the beach",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, suite.db.Create(story).Error)

	w := suite.request("POST", "/api/v1/stories/"+story.ID+"/view", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Story
	require.NoError(t, suite.db.First(&updated, "id = ?", story.ID).Error)
	assert.Equal(t, 1, updated.ViewCount)

	// Expired stories are gone from the API even before the sweep runs
	require.NoError(t, suite.db.Model(&updated).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
	w = suite.request("POST", "/api/v1/stories/"+story.ID+"/view", suite.buyer.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
