// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/engine"
	"github.com/your-org/commerce-session/internal/interfaces/http/handlers"
)

// SetupRoutes registers every session route on the API group.
// Identity and session middleware are installed by the server on rg.
func SetupRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	SetupSessionRoutes(rg, registry, log)
	SetupCartRoutes(rg, registry, log)
	SetupWishlistRoutes(rg, registry, log)
	SetupCouponRoutes(rg, registry, log)
	SetupCheckoutRoutes(rg, registry, log)
}

// SetupSessionRoutes sets up the combined session view
func SetupSessionRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	sessionHandler := handlers.NewSessionHandler(registry, log)

	rg.GET("/session", sessionHandler.GetSession)
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	cartHandler := handlers.NewCartHandler(registry, log)

	cart := rg.Group("/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cart.PUT("/packaging", cartHandler.SelectPackaging)
	}
}

// SetupWishlistRoutes sets up wishlist related routes
func SetupWishlistRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	wishlistHandler := handlers.NewWishlistHandler(registry, log)

	wishlist := rg.Group("/wishlist")
	{
		wishlist.GET("", wishlistHandler.GetWishlist)
		wishlist.POST("/items", wishlistHandler.AddToWishlist)
		wishlist.DELETE("/items/:id", wishlistHandler.RemoveFromWishlist)
		wishlist.POST("/items/:id/move-to-cart", wishlistHandler.MoveToCart)
	}
}

// SetupCouponRoutes sets up coupon redemption routes
func SetupCouponRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	couponHandler := handlers.NewCouponHandler(registry, log)

	coupon := rg.Group("/coupon")
	{
		coupon.POST("", couponHandler.ApplyCoupon)
		coupon.DELETE("", couponHandler.RemoveCoupon)
	}
}

// SetupCheckoutRoutes sets up the checkout handoff routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, registry *engine.Registry, log *logrus.Logger) {
	checkoutHandler := handlers.NewCheckoutHandler(registry, log)

	checkout := rg.Group("/checkout")
	{
		checkout.GET("/snapshot", checkoutHandler.GetSnapshot)
		checkout.POST("/complete", checkoutHandler.CompleteCheckout)
	}
}
