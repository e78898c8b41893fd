package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is where AuthMiddleware parks the authenticated user's ID.
const ContextUserIDKey = "userID"

// TokenValidator resolves a raw bearer token to a user ID. *services.TokenService
// satisfies it; handler tests plug in stubs.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// AuthMiddleware guards a route group: requests without a valid bearer token
// are rejected with 401 before any handler runs.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, msg := bearerToken(c)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		userID, err := tokens.ValidateToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// bearerToken pulls the token out of the Authorization header. The second
// return value is a client-facing message, empty on success.
func bearerToken(c *gin.Context) (token, errMsg string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", "authorization header required"
	}

	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != "Bearer" {
		return "", "invalid authorization header format"
	}

	return fields[1], ""
}

// GetUserID reads the authenticated user's ID set by AuthMiddleware.
func GetUserID(c *gin.Context) (string, bool) {
	id, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := id.(string)
	return idStr, ok
}
