package middleware

import (
	"net/http"
	"strings"

	"docqa-platform/internal/auth"
	"docqa-platform/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type AuthMiddleware struct {
	config *config.Config
	rdb    *redis.Client
}

func NewAuthMiddleware(cfg *config.Config, rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		rdb:    rdb,
	}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		// Try the Authorization header first, then the access_token cookie
		var tokenString string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "unauthorized",
				"message":    "Authentication token is required",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(tokenString, a.rdb)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error_code": "invalid_token",
				"message":    "Your session has expired. Please log in again.",
				"details":    gin.H{"error": err.Error()},
			})
			c.Abort()
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("claims", claims)

		c.Next()
	})
}

// GetUserEmail returns the verified caller identity, or "" when the
// request is unauthenticated.
func GetUserEmail(c *gin.Context) string {
	if email, exists := c.Get("user_email"); exists {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}

// GetUserID returns the caller's user id from the validated claims.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
