// internal/interfaces/http/middleware/session.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/commerce-session/internal/config"
)

const sessionIDKey = "session_id"

// Session gives every client a device session id kept in a cookie
func Session(cfg config.SessionConfig, secure bool) gin.HandlerFunc {
	maxAge := int(cfg.CookieTTL.Seconds())

	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cfg.CookieName)
		if err != nil || uuid.Validate(sessionID) != nil {
			sessionID = uuid.New().String()
		}

		// refresh the expiry on every request
		c.SetCookie(cfg.CookieName, sessionID, maxAge, "/", "", secure, true)
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// GetSessionID returns the device session id set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
