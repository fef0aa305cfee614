// internal/interfaces/http/handlers/session.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/engine"
)

// SessionHandler serves the combined session view
type SessionHandler struct {
	sessionHandler
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *engine.Registry, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{sessionHandler{registry: registry, log: log.WithField("handler", "session")}}
}

// GetSession handles GET /session
func (h *SessionHandler) GetSession(c *gin.Context) {
	var view engine.View
	t := h.withEngine(c, func(_ context.Context, e *engine.Engine) {
		view = e.View()
	})
	if t == nil {
		return
	}

	resp := gin.H{
		"message": "Session retrieved successfully",
		"data":    view,
	}
	if t.Changed {
		resp["transition"] = t
	}
	c.JSON(http.StatusOK, resp)
}
