package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"harvester/pkg/auth"
)

const (
	// AuthHeaderKey is the standard Authorization header
	AuthHeaderKey = "Authorization"
	// ContextUserKey is the key used to store caller claims in context
	ContextUserKey = "user"
	// ContextRequestIDKey is the key used to store request ID
	ContextRequestIDKey = "request_id"
)

// AuthMiddleware requires a valid Bearer token carrying at least the
// required role.
func AuthMiddleware(jwtService *auth.JWTService, required auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := tryJWTAuth(c, jwtService)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
				"hint":  "provide a Bearer token",
			})
			return
		}

		if !claims.Role.HasPermission(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    auth.ErrInsufficientRole.Error(),
				"required": required,
				"current":  claims.Role,
			})
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// tryJWTAuth attempts to authenticate via JWT Bearer token
func tryJWTAuth(c *gin.Context, jwtService *auth.JWTService) *auth.Claims {
	if jwtService == nil {
		return nil
	}

	// Expect "Bearer <token>"
	parts := strings.SplitN(c.GetHeader(AuthHeaderKey), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}

	claims, err := jwtService.ValidateToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil
	}
	return claims
}

// GetUserFromContext retrieves caller claims from the request context
func GetUserFromContext(c *gin.Context) (*auth.Claims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}
