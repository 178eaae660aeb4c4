package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventmarket/backend/internal/auth"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/pkg/response"
)

const (
	// ContextUserID is the key for the identity-provider subject in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserFirstName is the key for the given name in gin context.
	ContextUserFirstName = "user_first_name"
	// ContextUserLastName is the key for the family name in gin context.
	ContextUserLastName = "user_last_name"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		first, last := claims.Names()
		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserFirstName, first)
		c.Set(ContextUserLastName, last)
		c.Next()
	}
}

// IdentityFrom returns the caller identity set by JWT. Missing values are
// empty, which the membership guard reports as not authenticated.
func IdentityFrom(c *gin.Context) membership.Identity {
	return membership.Identity{
		UserID:    c.GetString(ContextUserID),
		Email:     c.GetString(ContextUserEmail),
		FirstName: c.GetString(ContextUserFirstName),
		LastName:  c.GetString(ContextUserLastName),
	}
}
