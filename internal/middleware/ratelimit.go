// Package middleware holds shared gin middleware.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/cache"
	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit creates a distributed fixed-window rate limiter keyed on the
// authenticated user (falling back to client IP). Backed by Redis so the
// window is shared across instances; when Redis is not configured the
// limiter is a pass-through.
func RateLimit(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := cache.GetRedisClient()
		if redisClient == nil {
			c.Next()
			return
		}

		subject := c.GetString("user_id")
		if subject == "" {
			subject = c.ClientIP()
		}
		key := fmt.Sprintf("rate_limit:%s:%s", name, subject)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		current, err := redisClient.GetInt(ctx, key)
		if err != nil {
			logger.Log.Error("Rate limit check failed",
				zap.String("limiter", name),
				zap.Error(err),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
			c.Abort()
			return
		}

		if current >= int64(maxRequests) {
			logger.Log.Warn("Rate limit exceeded",
				zap.String("limiter", name),
				zap.String("subject", subject),
				zap.Int64("current", current),
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		count, err := redisClient.IncrBy(ctx, key, 1)
		if err != nil {
			logger.Log.Error("Rate limit increment failed",
				zap.String("limiter", name),
				zap.Error(err),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
			c.Abort()
			return
		}

		// First request in this window starts the clock.
		if count == 1 {
			if err := redisClient.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					zap.String("limiter", name),
					zap.Error(err),
				)
			}
		}

		c.Next()
	}
}
