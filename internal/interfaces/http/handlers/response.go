// internal/interfaces/http/handlers/response.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/interfaces/http/middleware"
)

// resultResponse is the mutator envelope: success, error and suggestedQuantity
// at the top level, followed by the state the UI should render
type resultResponse struct {
	outcome.Result
	Data       any                `json:"data,omitempty"`
	Transition *engine.Transition `json:"transition,omitempty"`
}

// sessionHandler resolves the device session's engine for a request
type sessionHandler struct {
	registry *engine.Registry
	log      *logrus.Entry
}

// withEngine runs fn holding the engine lock, after applying the request's identity.
// It returns nil when the engine could not be loaded; the error response is already written.
func (h *sessionHandler) withEngine(c *gin.Context, fn func(ctx context.Context, e *engine.Engine)) *engine.Transition {
	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)

	e, err := h.registry.Get(ctx, sessionID)
	if err != nil {
		h.log.WithError(err).WithField("session_id", sessionID).Error("Failed to load session engine")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to load session",
		})
		return nil
	}

	e.Lock()
	defer e.Unlock()

	t := e.SetUser(ctx, middleware.GetCurrentUser(c))
	fn(ctx, e)
	return &t
}

// respondResult writes a mutator result with the state to render
func respondResult(c *gin.Context, res outcome.Result, data any, t *engine.Transition) {
	body := resultResponse{Result: res, Data: data}
	if t != nil && t.Changed {
		body.Transition = t
	}
	c.JSON(statusFor(res), body)
}

// statusFor maps a result onto an HTTP status
func statusFor(res outcome.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Reason {
	case outcome.ReasonInvalidInput:
		return http.StatusBadRequest
	case outcome.ReasonSignInRequired:
		return http.StatusUnauthorized
	case outcome.ReasonInvalidCode:
		return http.StatusNotFound
	case outcome.ReasonAlreadyExists, outcome.ReasonConflict:
		return http.StatusConflict
	case outcome.ReasonPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}
