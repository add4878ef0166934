package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventman/backend/internal/auth"
	"github.com/eventman/backend/internal/permissions"
	"github.com/eventman/backend/pkg/response"
)

const (
	// ContextUserID is the key for the authenticated user's id in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the authenticated user's email.
	ContextUserEmail = "user_email"
	// ContextUserRoles is the key for the authenticated user's roles.
	ContextUserRoles = "user_roles"
)

// Authenticate returns a middleware that verifies the bearer token and, on
// success, attaches the identity to the request context. A missing, malformed
// or expired token never aborts the request: the handler chain continues
// without an identity, and the Require* gates decide what to do about that.
// An identity already present on the context is left untouched.
func Authenticate(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); exists {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}
		claims, err := jwtService.Verify(parts[1])
		if err != nil {
			// Invalid tokens yield no identity, nothing more.
			c.Next()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Subject)
		c.Set(ContextUserRoles, claims.Roles)
		c.Next()
	}
}

// RequireAuth returns a middleware that rejects requests with no identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserID); !ok {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePermission returns a middleware that rejects requests whose identity
// lacks the permission: 401 with no identity, 403 when the role set does not
// grant it.
func RequirePermission(p permissions.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserID); !ok {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		if !permissions.Has(CurrentRoles(c), p) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id, if any.
func CurrentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// CurrentRoles returns the authenticated user's roles, or nil.
func CurrentRoles(c *gin.Context) []string {
	v, ok := c.Get(ContextUserRoles)
	if !ok {
		return nil
	}
	roles, _ := v.([]string)
	return roles
}
