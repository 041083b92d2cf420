package middleware

import (
	"net/http"
	"strings"

	"dex-backend/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AddressKey is the gin context key holding the session user's checksum address
const AddressKey = "address"

// TokenValidator validates session tokens
type TokenValidator interface {
	Validate(token string) (*dto.JWTClaims, error)
}

// AuthMiddleware JWT session authentication
type AuthMiddleware struct {
	validator TokenValidator
	logger    *logrus.Logger
}

// NewAuthMiddleware creates the session middleware
func NewAuthMiddleware(validator TokenValidator, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// RequireAuth rejects requests without a valid Bearer session token
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Debug("Session auth failed - missing Bearer token")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}

		claims, err := a.validator.Validate(token)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("Session auth failed - invalid token")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Invalid or expired token.",
			})
			return
		}

		c.Set(AddressKey, claims.Address)
		c.Next()
	}
}

// OptionalAuth sets the session address when a valid token is present and never rejects
func (a *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := a.validator.Validate(token); err == nil {
				c.Set(AddressKey, claims.Address)
			}
		}
		c.Next()
	}
}

// SessionAddress returns the authenticated address, or "" when there is none
func SessionAddress(c *gin.Context) string {
	return c.GetString(AddressKey)
}
