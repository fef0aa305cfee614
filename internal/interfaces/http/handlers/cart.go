// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/coupon"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/outcome"
)

// AddToCartRequest is the body of POST /cart/items; quantity defaults to 1
type AddToCartRequest struct {
	Product  cart.Product `json:"product"`
	Quantity *int         `json:"quantity"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:id; zero removes the line
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// SelectPackagingRequest is the body of PUT /cart/packaging
type SelectPackagingRequest struct {
	Packaging cart.Packaging `json:"packaging" binding:"required"`
}

// CartResponse is the cart read model with coupon totals
type CartResponse struct {
	cart.View
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	AppliedCoupon *coupon.Coupon  `json:"appliedCoupon"`
}

// CartHandler handles cart endpoints
type CartHandler struct {
	sessionHandler
}

// NewCartHandler creates a new cart handler
func NewCartHandler(registry *engine.Registry, log *logrus.Logger) *CartHandler {
	return &CartHandler{sessionHandler{registry: registry, log: log.WithField("handler", "cart")}}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	var resp CartResponse
	if t := h.withEngine(c, func(_ context.Context, e *engine.Engine) {
		resp = cartResponse(e)
	}); t == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    resp,
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.Cart.AddItem(ctx, req.Product, quantity)
	})
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}
	id := c.Param("id")

	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.Cart.UpdateQuantity(ctx, id, *req.Quantity)
	})
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	id := c.Param("id")
	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.Cart.RemoveItem(ctx, id)
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.Cart.Clear(ctx)
	})
}

// SelectPackaging handles PUT /cart/packaging
func (h *CartHandler) SelectPackaging(c *gin.Context) {
	var req SelectPackagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	h.mutate(c, func(ctx context.Context, e *engine.Engine) outcome.Result {
		return e.Cart.SelectPackaging(ctx, req.Packaging)
	})
}

func (h *CartHandler) mutate(c *gin.Context, fn func(ctx context.Context, e *engine.Engine) outcome.Result) {
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

func cartResponse(e *engine.Engine) CartResponse {
	v := e.View()
	return CartResponse{
		View:          v.Cart,
		Discount:      v.Discount,
		Total:         v.Total,
		AppliedCoupon: v.AppliedCoupon,
	}
}
