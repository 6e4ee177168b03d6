package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	tokens "github.com/ArowuTest/tambola-backend/pkg/jwt"
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUserID = "userID"
	ContextClaims = "claims"
)

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
func JWTAuthMiddleware(tokenService *tokens.TokenService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenService == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication is not configured"})
			return
		}

		tokenString := tokens.TokenFromRequest(c.Request)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		claims, err := tokenService.Parse(tokenString)
		if err != nil {
			logger.Debug("token validation failed", zap.Error(err))
			if errors.Is(err, tokens.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role.
// It must run after JWTAuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin privileges required", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by JWTAuthMiddleware
func ClaimsFrom(c *gin.Context) (*tokens.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokens.Claims)
	return claims, ok
}
