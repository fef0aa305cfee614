// internal/domain/engine/engine.go
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/coupon"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/domain/session"
	"github.com/your-org/commerce-session/internal/domain/wishlist"
)

// Deps are the collaborators shared by every engine
type Deps struct {
	Blobs     persistence.BlobStore
	Remote    docstore.Store
	Publisher events.Publisher
	Log       *logrus.Entry
}

// Engine is the commerce state of one device session: its cart, wishlist and
// applied coupon. Stores do not lock; callers hold Lock around every call.
type Engine struct {
	mu sync.Mutex

	id   string
	mode session.Mode
	log  *logrus.Entry

	// user mirrors mode for readers that do not hold the lock
	user atomic.Value

	Cart     *cart.Store
	Wishlist *wishlist.Store
	Coupons  *coupon.Service
}

// Transition reports what a session mode change did to each store
type Transition struct {
	Changed  bool           `json:"changed"`
	Cart     outcome.Result `json:"cart"`
	Wishlist outcome.Result `json:"wishlist"`
}

// View is the read model returned to the UI layer
type View struct {
	SessionID     string          `json:"sessionId"`
	Mode          string          `json:"mode"`
	Cart          cart.View       `json:"cart"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	AppliedCoupon *coupon.Coupon  `json:"appliedCoupon"`
	CouponError   string          `json:"couponError,omitempty"`
	Wishlist      wishlist.View   `json:"wishlist"`
}

// CheckoutSnapshot is the handoff consumed by downstream checkout
type CheckoutSnapshot struct {
	SessionID     string          `json:"sessionId"`
	UserID        string          `json:"userId,omitempty"`
	Items         []cart.CartItem `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Packaging     cart.Packaging  `json:"selectedPackaging"`
	AppliedCoupon *coupon.Coupon  `json:"appliedCoupon"`
	Flags         coupon.Flags    `json:"flags"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// New creates a guest engine for a device session and loads its device state.
// A device tier that cannot be read fails the call; a corrupt blob loads as empty.
func New(ctx context.Context, id string, deps Deps) (*Engine, error) {
	mode := session.Guest()
	log := deps.Log.WithField("session_id", id)

	e := &Engine{
		id:       id,
		mode:     mode,
		log:      log,
		Cart:     cart.NewStore(deps.Blobs, id, mode, deps.Log),
		Wishlist: wishlist.NewStore(deps.Blobs, id, mode, deps.Log),
		Coupons:  coupon.NewService(deps.Remote, deps.Publisher, id, mode, deps.Log),
	}
	e.user.Store("")

	if err := e.Cart.Hydrate(ctx); err != nil {
		log.WithError(err).Warn("Failed to restore cart")
		return nil, err
	}
	if err := e.Wishlist.Hydrate(ctx); err != nil {
		log.WithError(err).Warn("Failed to restore wishlist")
		return nil, err
	}
	return e, nil
}

// ID returns the device session id
func (e *Engine) ID() string {
	return e.id
}

// Mode returns the current session mode
func (e *Engine) Mode() session.Mode {
	return e.mode
}

// UserID returns the signed-in user id, empty for guests. Safe without Lock.
func (e *Engine) UserID() string {
	return e.user.Load().(string)
}

// Lock serializes calls on the engine's stores
func (e *Engine) Lock() {
	e.mu.Lock()
}

// Unlock releases Lock
func (e *Engine) Unlock() {
	e.mu.Unlock()
}

// SetUser applies the identity seen on a request. A different user id switches
// both stores (load-and-merge) and drops the applied coupon; the same id is a no-op.
// The engine keeps its old mode until both stores have switched, so a failed
// switch is retried by the next request.
func (e *Engine) SetUser(ctx context.Context, user *session.CurrentUser) Transition {
	mode := session.ModeFor(user)
	if mode == e.mode {
		return Transition{}
	}

	from := e.mode
	t := Transition{
		Changed:  true,
		Cart:     e.Cart.SwitchMode(ctx, mode),
		Wishlist: e.Wishlist.SwitchMode(ctx, mode),
	}
	entry := e.log.WithFields(logrus.Fields{
		"from":             from.String(),
		"to":               mode.String(),
		"cart_outcome":     t.Cart.Outcome,
		"wishlist_outcome": t.Wishlist.Outcome,
	})
	if e.Cart.Mode() != mode || e.Wishlist.Mode() != mode {
		entry.Warn("Session mode change incomplete")
		return t
	}

	e.Coupons.SwitchMode(mode)
	e.mode = mode
	e.user.Store(mode.UserID())

	entry.Info("Session mode changed")
	return t
}

// ApplyCoupon redeems code against the current cart subtotal
func (e *Engine) ApplyCoupon(ctx context.Context, code string) outcome.Result {
	return e.Coupons.ApplyCoupon(ctx, code, e.Cart.Subtotal())
}

// MoveToCart moves a saved wishlist item into the cart
func (e *Engine) MoveToCart(ctx context.Context, id string) outcome.Result {
	item, ok := e.Wishlist.Item(id)
	if !ok {
		return outcome.Reject(outcome.ReasonInvalidInput, "item is not in your wishlist")
	}
	return e.Wishlist.MoveToCart(ctx, item.Product(), e.Cart)
}

// View returns the current read model of the session
func (e *Engine) View() View {
	applied := e.Coupons.AppliedCoupon()
	subtotal := e.Cart.Subtotal()
	return View{
		SessionID:     e.id,
		Mode:          e.mode.String(),
		Cart:          e.Cart.View(),
		Discount:      coupon.Discount(applied, subtotal),
		Total:         e.Cart.Total(applied),
		AppliedCoupon: applied,
		CouponError:   e.Coupons.LastError(),
		Wishlist:      e.Wishlist.View(),
	}
}

// CheckoutSnapshot resolves items and totals for checkout
func (e *Engine) CheckoutSnapshot() CheckoutSnapshot {
	applied := e.Coupons.AppliedCoupon()
	subtotal := e.Cart.Subtotal()
	return CheckoutSnapshot{
		SessionID:     e.id,
		UserID:        e.mode.UserID(),
		Items:         e.Cart.Items(),
		Subtotal:      subtotal,
		Discount:      coupon.Discount(applied, subtotal),
		Total:         e.Cart.Total(applied),
		Packaging:     e.Cart.Packaging(),
		AppliedCoupon: applied,
		Flags:         coupon.FlagsOf(applied),
		CreatedAt:     time.Now().UTC(),
	}
}

// CompleteCheckout empties the cart after a successful handoff and releases the applied coupon
func (e *Engine) CompleteCheckout(ctx context.Context) outcome.Result {
	res := e.Cart.Clear(ctx)
	if res.Success {
		e.Coupons.RemoveCoupon()
	}
	return res
}
