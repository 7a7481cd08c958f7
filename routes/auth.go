package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"docqa-platform/internal/auth"
	"docqa-platform/internal/config"
	"docqa-platform/middleware"
	"docqa-platform/models"
	"docqa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, mongoClient *mongo.Client, rdb *redis.Client, authMiddleware *middleware.AuthMiddleware) {
	authGroup := router.Group("/auth")

	db := mongoClient.Database(cfg.DBName)
	usersCollection := db.Collection("users")

	// Register endpoint
	authGroup.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		var existingUser models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"email": email}).Decode(&existingUser); err == nil {
			utils.RespondWithError(c, http.StatusConflict, "email_exists", "An account with this email already exists", nil)
			return
		}

		hashedPassword, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		user := models.User{
			Email:        email,
			Name:         req.Name,
			PasswordHash: hashedPassword,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}

		result, err := usersCollection.InsertOne(context.Background(), user)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		userID := result.InsertedID.(primitive.ObjectID).Hex()
		pair, err := auth.IssueTokenPair(userID, email, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setTokenCookies(c, pair)
		c.JSON(http.StatusCreated, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User: models.UserInfo{
				ID:    userID,
				Email: email,
				Name:  req.Name,
			},
		})
	})

	// Login endpoint
	authGroup.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		var user models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"email": email}).Decode(&user); err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
			return
		}

		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
			return
		}

		pair, err := auth.IssueTokenPair(user.ID.Hex(), email, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setTokenCookies(c, pair)
		c.JSON(http.StatusOK, models.TokenPairResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			AccessExp:    pair.AccessExp,
			RefreshExp:   pair.RefreshExp,
			User: models.UserInfo{
				ID:    user.ID.Hex(),
				Email: user.Email,
				Name:  user.Name,
			},
		})
	})

	// Refresh endpoint rotates both tokens
	authGroup.POST("/refresh", func(c *gin.Context) {
		refreshToken := refreshTokenFromRequest(c)
		if refreshToken == "" {
			utils.RespondWithUnauthorized(c, "Refresh token is required")
			return
		}

		claims, err := auth.ValidateRefreshToken(refreshToken, rdb)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
			return
		}

		// The used refresh token is revoked so it cannot be replayed.
		if err := auth.RevokeToken(claims.ID, true, rdb); err != nil {
			utils.RespondWithInternalError(c, "Failed to rotate refresh token", nil)
			return
		}

		pair, err := auth.IssueTokenPair(claims.UserID, claims.Email, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setTokenCookies(c, pair)
		c.JSON(http.StatusOK, pair)
	})

	// Logout revokes whatever tokens the caller presents
	authGroup.POST("/logout", func(c *gin.Context) {
		if refreshToken := refreshTokenFromRequest(c); refreshToken != "" {
			if claims, err := auth.ValidateRefreshToken(refreshToken, rdb); err == nil {
				auth.RevokeToken(claims.ID, true, rdb)
			}
		}

		var accessToken string
		if header := c.GetHeader("Authorization"); header != "" {
			accessToken = strings.TrimPrefix(header, "Bearer ")
		} else if cookie, err := c.Cookie("access_token"); err == nil {
			accessToken = cookie
		}
		if accessToken != "" {
			if claims, err := auth.ValidateAccessToken(accessToken, rdb); err == nil {
				auth.RevokeToken(claims.ID, false, rdb)
			}
		}

		clearTokenCookies(c)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})

	// Current user endpoint
	authGroup.GET("/me", authMiddleware.RequireAuth(), func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		var user models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"email": email}).Decode(&user); err != nil {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		c.JSON(http.StatusOK, models.UserInfo{
			ID:    user.ID.Hex(),
			Email: user.Email,
			Name:  user.Name,
		})
	})
}

func refreshTokenFromRequest(c *gin.Context) string {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken
	}
	if cookie, err := c.Cookie("refresh_token"); err == nil {
		return cookie
	}
	return ""
}

func setTokenCookies(c *gin.Context, pair *auth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Until(pair.AccessExp).Seconds()), "/", "", false, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(time.Until(pair.RefreshExp).Seconds()), "/", "", false, true)
}

func clearTokenCookies(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", false, true)
	c.SetCookie("refresh_token", "", -1, "/", "", false, true)
}
