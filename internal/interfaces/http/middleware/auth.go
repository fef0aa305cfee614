// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/session"
	"github.com/your-org/commerce-session/internal/pkg/auth"
)

const currentUserKey = "current_user"

// OptionalAuth resolves the bearer token into the current user when one is present.
// Requests without a valid token continue as guests.
func OptionalAuth(verifier auth.Verifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// No auth header, continue without authentication
			c.Next()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			// Invalid header format, continue without authentication
			c.Next()
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Debug("Ignoring invalid bearer token")
			c.Next()
			return
		}

		c.Set(currentUserKey, user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// GetCurrentUser returns the verified user, or nil for guests
func GetCurrentUser(c *gin.Context) *session.CurrentUser {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*session.CurrentUser)
	return user
}
