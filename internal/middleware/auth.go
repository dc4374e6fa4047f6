package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"promptday-backend/internal/services"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("address", claims.Address)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// AdminAuthMiddleware guards the rotation endpoints with the shared API
// token.
func AdminAuthMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || c.GetHeader("Authorization") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func RateLimitMiddleware(redisService *services.RedisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetString("address")
		if address == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int
		var window time.Duration

		switch {
		case strings.Contains(path, "/contest/attempts"):
			limit = services.DefaultRateLimitAttempts
			window = time.Minute
		case strings.Contains(path, "/contest/submit"):
			limit = 20
			window = time.Minute
		default:
			c.Next()
			return
		}

		allowed, err := redisService.CheckRateLimit(c.Request.Context(), address, path, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
