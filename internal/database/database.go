package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize(databaseURL string) error {
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "instabook")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("Database connected")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Bid{},
		&models.Story{},
		&models.SharedLocation{},
		&models.Shoutout{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// createIndexes creates performance indexes beyond what the model tags declare
func createIndexes() error {
	// Settlement work-set query: type in (Bid, Both), ended, not settled, not sold
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_listings_auction_pending ON listings (bid_end_time) WHERE auction_completed = false AND is_sold = false")

	// Sold-listing sweep: delete_at passed and still holding media
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_listings_delete_at ON listings (delete_at) WHERE delete_at IS NOT NULL")

	// Marketplace feed
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_listings_user_created ON listings (user_id, created_at DESC)")

	// Bid history retrieval, newest first
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_bids_listing_created ON bids (listing_id, created_at DESC)")

	// Expiry sweeps
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_stories_expires ON stories (expires_at)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_shared_locations_expires ON shared_locations (expires_at)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_shoutouts_expires ON shoutouts (expires_at)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
