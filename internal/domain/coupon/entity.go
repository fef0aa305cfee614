// internal/domain/coupon/entity.go
package coupon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/commerce-session/internal/domain/docstore"
)

// Collections used by redemption
const (
	CouponsCollection = "coupons"
	UsageCollection   = "couponUsage"
)

// Type is the kind of discount a coupon grants
type Type string

const (
	TypePercentage    Type = "percentage"
	TypeFixed         Type = "fixed"
	TypeFreeShipping  Type = "free_shipping"
	TypeFreePackaging Type = "free_packaging"
)

// Coupon is a discount code document owned by the catalog administration
type Coupon struct {
	Code         string           `json:"code"`
	Type         Type             `json:"type"`
	Value        decimal.Decimal  `json:"value"`
	MaxDiscount  *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinPurchase  *decimal.Decimal `json:"minPurchase,omitempty"`
	ValidFrom    *time.Time       `json:"validFrom,omitempty"`
	ValidUntil   *time.Time       `json:"validUntil,omitempty"`
	UsageLimit   *int             `json:"usageLimit,omitempty"`
	TimesUsed    int              `json:"timesUsed"`
	PerUserLimit *int             `json:"perUserLimit,omitempty"`
	IsActive     bool             `json:"isActive"`

	// Path is the document the coupon was read from
	Path string `json:"-"`
}

// UserCouponUsage counts one user's redemptions of one code
type UserCouponUsage struct {
	Code       string     `json:"code"`
	UserID     string     `json:"userId"`
	Count      int        `json:"count"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// UsagePath is the document path of a user's usage record for code
func UsagePath(code, userID string) string {
	return fmt.Sprintf("%s/%s__%s", UsageCollection, code, userID)
}

// FromDocument decodes a coupon document
func FromDocument(doc docstore.Document) (*Coupon, error) {
	var c Coupon
	if err := decode(doc.Data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode coupon %s: %w", doc.Path, err)
	}
	switch c.Type {
	case TypePercentage, TypeFixed, TypeFreeShipping, TypeFreePackaging:
	default:
		return nil, fmt.Errorf("coupon %s has unknown type %q", doc.Path, c.Type)
	}
	c.Path = doc.Path
	return &c, nil
}

// UsageFromDocument decodes a usage record
func UsageFromDocument(doc docstore.Document) (*UserCouponUsage, error) {
	var u UserCouponUsage
	if err := decode(doc.Data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode coupon usage %s: %w", doc.Path, err)
	}
	return &u, nil
}

// decode maps backend document values onto a typed struct through JSON
func decode(data map[string]any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Flags are the non-monetary effects of the applied coupon, consumed by checkout
type Flags struct {
	FreeShipping  bool `json:"freeShipping"`
	FreePackaging bool `json:"freePackaging"`
}

// FlagsOf returns the flags granted by c
func FlagsOf(c *Coupon) Flags {
	if c == nil {
		return Flags{}
	}
	return Flags{
		FreeShipping:  c.Type == TypeFreeShipping,
		FreePackaging: c.Type == TypeFreePackaging,
	}
}

var hundred = decimal.NewFromInt(100)

// Discount is the amount c takes off subtotal, rounded to cents.
// Free shipping and free packaging coupons discount nothing here.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.Type {
	case TypePercentage:
		d = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil && d.GreaterThan(*c.MaxDiscount) {
			d = *c.MaxDiscount
		}
	case TypeFixed:
		d = decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
