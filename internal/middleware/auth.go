// Package middleware holds the gin middleware that depends on application services.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/pkg/response"
	"github.com/gin-gonic/gin"
)

// Context keys set by Auth
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	ContextUser   = "user"
)

const bearerPrefix = "Bearer "

// Authenticator resolves a bearer access token to the current user record
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (*domain.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// Auth requires a valid access token and stores the freshly loaded user in the context
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
			c.Abort()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				response.Unauthorized(c, "TOKEN_EXPIRED", "Token has expired")
			case errors.Is(err, service.ErrUnauthenticated):
				response.Unauthorized(c, "UNAUTHENTICATED", "Could not validate credentials")
			default:
				response.InternalError(c, err)
			}
			c.Abort()
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextEmail, user.Email)
		c.Set(ContextRole, string(user.Role))
		c.Set(ContextUser, user)
		c.Next()
	}
}

// AdminOnly restricts access to users whose stored role is admin
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			response.Unauthorized(c, "UNAUTHENTICATED", "Not authenticated")
			c.Abort()
			return
		}

		if role.(string) != string(domain.RoleAdmin) {
			response.Forbidden(c, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Auth
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}
