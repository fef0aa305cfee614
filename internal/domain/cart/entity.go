// internal/domain/cart/entity.go
package cart

import (
	"github.com/shopspring/decimal"
	"github.com/your-org/commerce-session/internal/domain/persistence"
)

// Packaging is the packaging option chosen for the order
type Packaging string

const (
	PackagingFree      Packaging = "free"
	PackagingEssential Packaging = "essential"
)

// Valid reports whether p is a known packaging option
func (p Packaging) Valid() bool {
	return p == PackagingFree || p == PackagingEssential
}

// Product is the catalog view a caller hands to the cart or wishlist.
// A nil Stock means the product is unconstrained.
type Product struct {
	ID              string           `json:"id" validate:"required"`
	Name            string           `json:"name" validate:"required"`
	ImageURL        string           `json:"imageUrl"`
	Price           decimal.Decimal  `json:"price" validate:"gte=0"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent int              `json:"discountPercent" validate:"gte=0,lte=100"`
	Stock           *int             `json:"stock,omitempty"`
}

// CartItem is one line of the cart. Name and image are captured when the item is added.
type CartItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ImageURL        string          `json:"imageUrl"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	DiscountPercent int             `json:"discountPercent"`
	Quantity        int             `json:"quantity"`
	StockAtAdd      *int            `json:"stockAtAdd,omitempty"`
}

// Key identifies the item for reconciliation
func (i CartItem) Key() string {
	return i.ID
}

// UnitPrice is the price actually charged per unit
func (i CartItem) UnitPrice() decimal.Decimal {
	if i.DiscountedPrice.LessThan(i.Price) {
		return i.DiscountedPrice
	}
	return i.Price
}

// LineTotal is the unit price times quantity
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func newItem(p Product, quantity int) CartItem {
	charged := p.Price
	if p.DiscountedPrice != nil {
		charged = *p.DiscountedPrice
	}
	return CartItem{
		ID:              p.ID,
		Name:            p.Name,
		ImageURL:        p.ImageURL,
		Price:           p.Price,
		DiscountedPrice: charged,
		DiscountPercent: p.DiscountPercent,
		Quantity:        quantity,
		StockAtAdd:      copyInt(p.Stock),
	}
}

// State is the persisted cart blob
type State struct {
	Version           int        `json:"version"`
	Items             []CartItem `json:"items"`
	SelectedPackaging Packaging  `json:"selectedPackaging"`
}

func newState(items []CartItem, packaging Packaging) State {
	if items == nil {
		items = []CartItem{}
	}
	return State{Version: persistence.Version, Items: items, SelectedPackaging: packaging}
}

// View is what subscribers receive after every change
type View struct {
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
	Packaging Packaging       `json:"selectedPackaging"`
	LastError string          `json:"lastError,omitempty"`
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func copyItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	for i, it := range items {
		it.StockAtAdd = copyInt(it.StockAtAdd)
		out[i] = it
	}
	return out
}

// EmptyState is the blob of an empty cart
func EmptyState() State {
	return newState(nil, PackagingFree)
}
