// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/wishlist"
)

// AddToWishlistRequest is the body of POST /wishlist/items
type AddToWishlistRequest struct {
	Product cart.Product `json:"product"`
}

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	sessionHandler
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(registry *engine.Registry, log *logrus.Logger) *WishlistHandler {
	return &WishlistHandler{sessionHandler{registry: registry, log: log.WithField("handler", "wishlist")}}
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	var view wishlist.View
	if t := h.withEngine(c, func(_ context.Context, e *engine.Engine) {
		view = e.Wishlist.View()
	}); t == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data":    view,
	})
}

// AddToWishlist handles POST /wishlist/items
func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	var req AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	var (
		res  outcome.Result
		view wishlist.View
	)
	t := h.withEngine(c, func(ctx context.Context, e *engine.Engine) {
		res = e.Wishlist.AddItem(ctx, req.Product)
		view = e.Wishlist.View()
	})
	if t == nil {
		return
	}
	respondResult(c, res, view, t)
}

// RemoveFromWishlist handles DELETE /wishlist/items/:id
func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	id := c.Param("id")

	var (
		res  outcome.Result
		view wishlist.View
	)
	t := h.withEngine(c, func(ctx context.Context, e *engine.Engine) {
		res = e.Wishlist.RemoveItem(ctx, id)
		view = e.Wishlist.View()
	})
	if t == nil {
		return
	}
	respondResult(c, res, view, t)
}

// MoveToCart handles POST /wishlist/items/:id/move-to-cart.
// The response carries the whole session since both the cart and the wishlist change.
func (h *WishlistHandler) MoveToCart(c *gin.Context) {
	id := c.Param("id")

	var (
		res  outcome.Result
		view engine.View
	)
	t := h.withEngine(c, func(ctx context.Context, e *engine.Engine) {
		res = e.MoveToCart(ctx, id)
		view = e.View()
	})
	if t == nil {
		return
	}
	respondResult(c, res, view, t)
}
