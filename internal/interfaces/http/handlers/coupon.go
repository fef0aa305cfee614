// internal/interfaces/http/handlers/coupon.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/outcome"
)

// ApplyCouponRequest is the body of POST /coupon
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponHandler handles coupon redemption endpoints
type CouponHandler struct {
	sessionHandler
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(registry *engine.Registry, log *logrus.Logger) *CouponHandler {
	return &CouponHandler{sessionHandler{registry: registry, log: log.WithField("handler", "coupon")}}
}

// ApplyCoupon handles POST /coupon
func (h *CouponHandler) ApplyCoupon(c *gin.Context) {
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.ApplyCoupon(ctx, req.Code)
	})
}

// RemoveCoupon handles DELETE /coupon
func (h *CouponHandler) RemoveCoupon(c *gin.Context) {
	h.mutate(c, func(_ context.Context, e *engine.Engine) outcome.Result {
		return e.Coupons.RemoveCoupon()
	})
}

func (h *CouponHandler) mutate(c *gin.Context, fn func(ctx context.Context, e *engine.Engine) outcome.Result) {
	var (
		res  outcome.Result
		resp CartResponse
	)
	t := h.withEngine(c, func(ctx context.Context, e *engine.Engine) {
		res = fn(ctx, e)
		resp = cartResponse(e)
	})
	if t == nil {
		return
	}
	respondResult(c, res, resp, t)
}
