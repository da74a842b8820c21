package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// Context keys set by the auth middlewares
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(token string) (*types.TokenClaims, error)
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			Abort(c, apperrors.ErrUnauthorized.WithMessage("Missing authorization header"))
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			Abort(c, apperrors.ErrUnauthorized.WithMessage("Invalid authorization header format"))
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			Abort(c, apperrors.ErrUnauthorized.WithMessage("Invalid or expired token").WithCause(err))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid bearer token is present and lets
// anonymous requests through. A bad token is treated as anonymous.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := validator.ValidateToken(token); err == nil {
				c.Set(UserIDKey, claims.UserID)
				c.Set(UsernameKey, claims.Username)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
