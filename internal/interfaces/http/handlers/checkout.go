// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/outcome"
)

// CheckoutHandler hands the session over to checkout
type CheckoutHandler struct {
	sessionHandler
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(registry *engine.Registry, log *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{sessionHandler{registry: registry, log: log.WithField("handler", "checkout")}}
}

// GetSnapshot handles GET /checkout/snapshot
func (h *CheckoutHandler) GetSnapshot(c *gin.Context) {
	var snap engine.CheckoutSnapshot
	if t := h.withEngine(c, func(_ context.Context, e *engine.Engine) {
		snap = e.CheckoutSnapshot()
	}); t == nil {
		return
	}

	if len(snap.Items) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Your cart is empty",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout snapshot created",
		"data":    snap,
	})
}

// CompleteCheckout handles POST /checkout/complete
func (h *CheckoutHandler) CompleteCheckout(c *gin.Context) {
	var (
		res  outcome.Result
		resp CartResponse
	)
	t := h.withEngine(c, func(ctx context.Context, e *engine.Engine) {
		res = e.CompleteCheckout(ctx)
		resp = cartResponse(e)
	})
	if t == nil {
		return
	}
	respondResult(c, res, resp, t)
}
