// internal/domain/coupon/validate.go
package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/commerce-session/internal/domain/outcome"
)

// Validate checks eligibility in a fixed order so the first failing rule
// always produces the same message.
func Validate(c *Coupon, usage *UserCouponUsage, subtotal decimal.Decimal, now time.Time) outcome.Result {
	if !c.IsActive {
		return outcome.Reject(outcome.ReasonInactive, "this coupon is no longer active")
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return outcome.Reject(outcome.ReasonExpired,
			fmt.Sprintf("this coupon expired on %s", c.ValidUntil.Format("2006-01-02")))
	}
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return outcome.Reject(outcome.ReasonNotYetValid,
			fmt.Sprintf("this coupon is valid from %s", c.ValidFrom.Format("2006-01-02")))
	}
	if c.MinPurchase != nil && subtotal.LessThan(*c.MinPurchase) {
		shortfall := c.MinPurchase.Sub(subtotal).StringFixed(2)
		res := outcome.Reject(outcome.ReasonBelowMinimum,
			fmt.Sprintf("add %s more to use this coupon (minimum purchase %s)", shortfall, c.MinPurchase.StringFixed(2)))
		res.Shortfall = shortfall
		return res
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return outcome.Reject(outcome.ReasonUsageLimitReached, "this coupon has reached its usage limit")
	}
	if c.PerUserLimit != nil && usage != nil && usage.Count >= *c.PerUserLimit {
		return outcome.Reject(outcome.ReasonPerUserLimitReached, "you have already used this coupon the maximum number of times")
	}
	return outcome.Ok()
}
