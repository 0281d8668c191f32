package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Port     string
	LogLevel string
	LogFile  string

	DatabaseURL string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret []byte

	AWSRegion  string
	AWSBucket  string
	CDNBaseURL string

	ExpoPushURL string

	// Engine tick intervals and the post-sale media retention window.
	SettleInterval  time.Duration
	CleanupInterval time.Duration
	RetentionWindow time.Duration
}

// Load reads .env (if present) and builds the configuration.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	return &Config{
		Port:     getEnv("PORT", "8787"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "server.log"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		AWSRegion:  os.Getenv("AWS_REGION"),
		AWSBucket:  os.Getenv("AWS_BUCKET"),
		CDNBaseURL: os.Getenv("CDN_BASE_URL"),

		ExpoPushURL: getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),

		SettleInterval:  getEnvDuration("SETTLE_INTERVAL", time.Minute),
		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Minute),
		RetentionWindow: getEnvDuration("RETENTION_WINDOW", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s (%q), using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}
