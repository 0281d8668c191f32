package auth

import (
	"net/http"
	"strings"

	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/gin-gonic/gin"
)

// Middleware validates the bearer token and stores the authenticated user
// on the request context under "user_id" / "user".
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			// WebSocket clients pass the token as a query parameter.
			token = c.Query("token")
		}
		token = strings.TrimPrefix(token, "Bearer ")

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			c.Abort()
			return
		}

		user, err := s.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// AdminOnly requires the authenticated user to be an admin. Must run after
// Middleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if u, ok := user.(*models.User); !ok || !u.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
