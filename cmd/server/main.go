package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Abdullah-z/instaBook-Server/internal/auth"
	"github.com/Abdullah-z/instaBook-Server/internal/cache"
	"github.com/Abdullah-z/instaBook-Server/internal/cleanup"
	"github.com/Abdullah-z/instaBook-Server/internal/config"
	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/handlers"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/marketplace"
	"github.com/Abdullah-z/instaBook-Server/internal/metrics"
	"github.com/Abdullah-z/instaBook-Server/internal/middleware"
	"github.com/Abdullah-z/instaBook-Server/internal/push"
	"github.com/Abdullah-z/instaBook-Server/internal/storage"
	"github.com/Abdullah-z/instaBook-Server/internal/websocket"
)

func main() {
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	logger.Log.Info("=== instaBook server starting ===")

	if len(cfg.JWTSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	if err := database.Initialize(cfg.DatabaseURL); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: without it the rate limiter passes everything
	// through.
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	// S3 is optional in development: uploads fail but the engines still run.
	var mediaStore *storage.S3Store
	if cfg.AWSBucket != "" {
		store, err := storage.NewS3Store(cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
		if err != nil {
			logger.Log.Warn("Failed to initialize S3 store", zap.Error(err))
		} else if err := store.CheckBucketAccess(context.Background()); err != nil {
			logger.Log.Warn("S3 bucket access failed, continuing without media storage", zap.Error(err))
		} else {
			mediaStore = store
		}
	}

	metrics.Initialize()

	notifier := push.NewExpoClient(cfg.ExpoPushURL)
	authService := auth.NewService(cfg.JWTSecret)

	// WebSocket hub for realtime events
	hub := websocket.NewHub()
	go hub.Run()
	wsHandler := websocket.NewHandler(hub)

	// Auction engine + settlement ticker
	engine := marketplace.NewEngine(database.DB, notifier, cfg.RetentionWindow)
	engine.SetEventPublisher(hub)
	settler := marketplace.NewSettler(engine, cfg.SettleInterval)
	settler.Start()
	defer settler.Stop()

	// Expiry sweeps for stories, sold listings, locations and shoutouts
	var cleanupMedia storage.MediaStore
	if mediaStore != nil {
		cleanupMedia = mediaStore
	}
	cleanupService := cleanup.NewService(database.DB, cleanupMedia, cfg.CleanupInterval)
	cleanupService.Start()
	defer cleanupService.Stop()

	h := handlers.NewHandlers(authService, engine)
	if mediaStore != nil {
		h.SetStorage(mediaStore)
	}
	h.SetHub(hub)
	h.SetCleanup(cleanupService)

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Configure properly for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "instabook-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.GET("/me", authService.Middleware(), h.GetMe)
		}

		users := api.Group("/users")
		{
			users.Use(authService.Middleware())
			users.PUT("/push-token", h.UpdatePushToken)
		}

		listings := api.Group("/listings")
		{
			listings.Use(authService.Middleware())
			listings.POST("", h.CreateListing)
			listings.GET("", h.GetListings)
			listings.GET("/mine", h.GetMyListings)
			listings.GET("/:id", h.GetListing)
			listings.PUT("/:id", h.UpdateListing)
			listings.DELETE("/:id", h.DeleteListing)
			listings.PUT("/:id/sold", h.MarkAsSold)
			listings.GET("/:id/bids", h.GetBidHistory)
			listings.POST("/:id/bids",
				middleware.RateLimit("bids", 30, time.Minute),
				h.PlaceBid)
		}

		stories := api.Group("/stories")
		{
			stories.Use(authService.Middleware())
			stories.POST("", h.CreateStory)
			stories.GET("", h.GetStories)
			stories.POST("/:id/view", h.ViewStory)
			stories.DELETE("/:id", h.DeleteStory)
		}

		locations := api.Group("/locations")
		{
			locations.Use(authService.Middleware())
			locations.POST("", h.ShareLocation)
			locations.DELETE("", h.StopSharingLocation)
			locations.GET("", h.GetSharedLocations)
		}

		shoutouts := api.Group("/shoutouts")
		{
			shoutouts.Use(authService.Middleware())
			shoutouts.POST("", h.CreateShoutout)
			shoutouts.GET("", h.GetShoutouts)
		}

		ws := api.Group("/ws")
		{
			// Auth via ?token= query param or Authorization header
			ws.GET("", authService.Middleware(), wsHandler.HandleWebSocket)
			ws.GET("/stats", authService.Middleware(), auth.AdminOnly(), wsHandler.HandleStats)
		}

		admin := api.Group("/admin")
		{
			admin.Use(authService.Middleware(), auth.AdminOnly())
			admin.POST("/settle", h.ForceSettle)
			admin.POST("/sweep", h.ForceSweep)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("instaBook backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
