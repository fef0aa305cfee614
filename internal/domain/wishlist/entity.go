// internal/domain/wishlist/entity.go
package wishlist

import (
	"github.com/shopspring/decimal"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/persistence"
)

// WishlistItem is a saved product snapshot
type WishlistItem struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	ImageURL        string           `json:"imageUrl"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice,omitempty"`
	DiscountPercent int              `json:"discountPercent"`
	Stock           *int             `json:"stock,omitempty"`
}

// Key identifies the item for reconciliation
func (i WishlistItem) Key() string {
	return i.ID
}

// Product turns the snapshot back into the catalog view the cart accepts
func (i WishlistItem) Product() cart.Product {
	return cart.Product{
		ID:              i.ID,
		Name:            i.Name,
		ImageURL:        i.ImageURL,
		Price:           i.Price,
		DiscountedPrice: i.DiscountedPrice,
		DiscountPercent: i.DiscountPercent,
		Stock:           i.Stock,
	}
}

func itemFrom(p cart.Product) WishlistItem {
	return WishlistItem{
		ID:              p.ID,
		Name:            p.Name,
		ImageURL:        p.ImageURL,
		Price:           p.Price,
		DiscountedPrice: p.DiscountedPrice,
		DiscountPercent: p.DiscountPercent,
		Stock:           p.Stock,
	}
}

// State is the persisted wishlist blob
type State struct {
	Version int            `json:"version"`
	Items   []WishlistItem `json:"items"`
}

func newState(items []WishlistItem) State {
	if items == nil {
		items = []WishlistItem{}
	}
	return State{Version: persistence.Version, Items: items}
}

// View is what subscribers receive after every change
type View struct {
	Items     []WishlistItem `json:"items"`
	Count     int            `json:"count"`
	LastError string         `json:"lastError,omitempty"`
}
