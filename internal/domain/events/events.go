// internal/domain/events/events.go
package events

import (
	"context"
	"time"
)

// CouponRedeemed is published after a redemption batch commits
type CouponRedeemed struct {
	Code         string    `json:"code"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	DiscountType string    `json:"discount_type"`
	TimesUsed    int       `json:"times_used"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

// CheckoutCompleted is consumed from the checkout service once an order is placed
type CheckoutCompleted struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	OrderID     string    `json:"order_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher delivers domain events to other services
type Publisher interface {
	PublishCouponRedeemed(ctx context.Context, evt CouponRedeemed) error
}

// CheckoutHandler reacts to completed checkouts
type CheckoutHandler interface {
	HandleCheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error
}

// NopPublisher drops every event; used when messaging is disabled
type NopPublisher struct{}

// PublishCouponRedeemed does nothing
func (NopPublisher) PublishCouponRedeemed(context.Context, CouponRedeemed) error {
	return nil
}
