package router

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/mongo"
	"github.com/nextshop/commerce-api/pkg/redis"
)

const userContextKey = "current_user"

// IdentityMiddleware resolves the bearer token to a user and stashes it
// on the context. Requests without a token stay anonymous; a token that
// does not resolve is rejected rather than silently downgraded.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid authorization header", nil))
			c.Abort()
			return
		}

		userIDHex, err := redis.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if redis.IsNil(err) {
				c.JSON(http.StatusUnauthorized, global.ErrorResponse("Session expired or unknown", nil))
			} else {
				log.Printf("Error resolving session: %v", err)
				c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to resolve session", nil))
			}
			c.Abort()
			return
		}

		userID, err := bson.ObjectIDFromHex(userIDHex)
		if err != nil {
			c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid session", nil))
			c.Abort()
			return
		}

		user, err := mongo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, global.ErrorResponse("Unknown user", nil))
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous
// requests.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// RequireAuth aborts anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.JSON(http.StatusUnauthorized, global.ErrorResponse("Authentication required", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware throttles per identity (user id when
// authenticated, client IP otherwise) with a fixed request budget per
// window. Over-budget requests are rejected, never queued.
func RateLimitMiddleware(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		if user := CurrentUser(c); user != nil {
			identity = user.ID.Hex()
		}

		allowed, err := redis.Allow(c.Request.Context(), identity, limit, window)
		if err != nil {
			// Redis trouble should not take cart mutation down with it.
			log.Printf("Rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, global.ErrorResponse("Rate limit exceeded, try again later", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
