// internal/domain/cart/store.go
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/coupon"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/domain/session"
	"github.com/your-org/commerce-session/internal/domain/stock"
	"github.com/your-org/commerce-session/internal/pkg/validation"
)

// Store owns one device session's cart. Mutations apply in memory first, then
// go through the persistence adapter; callers serialize calls on one store.
type Store struct {
	blobs    persistence.BlobStore
	deviceID string
	mode     session.Mode
	log      *logrus.Entry

	items     []CartItem
	packaging Packaging
	lastError string

	subscribers map[int]func(View)
	nextSub     int
}

type snapshot struct {
	items     []CartItem
	packaging Packaging
}

// NewStore creates an empty cart for a device in the given mode
func NewStore(blobs persistence.BlobStore, deviceID string, mode session.Mode, log *logrus.Entry) *Store {
	return &Store{
		blobs:       blobs,
		deviceID:    deviceID,
		mode:        mode,
		log:         log.WithFields(logrus.Fields{"component": "cart", "session_id": deviceID}),
		items:       []CartItem{},
		packaging:   PackagingFree,
		subscribers: make(map[int]func(View)),
	}
}

// Hydrate loads the blob of the current scope; a missing or unreadable blob leaves the cart empty
func (s *Store) Hydrate(ctx context.Context) error {
	var st State
	found, err := s.blobs.Load(ctx, s.scope(), persistence.CartBlob, &st)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	if found {
		s.apply(st)
	}
	s.notify()
	return nil
}

// AddItem adds quantity units of p, merging into an existing line
func (s *Store) AddItem(ctx context.Context, p Product, quantity int) outcome.Result {
	if quantity < 1 {
		return s.reject(outcome.Reject(outcome.ReasonInvalidInput, "quantity must be at least 1"))
	}
	if err := validateProduct(p); err != nil {
		return s.reject(outcome.Reject(outcome.ReasonInvalidInput, err.Error()))
	}

	idx := s.indexOf(p.ID)
	existing := 0
	if idx >= 0 {
		existing = s.items[idx].Quantity
	}

	decision := stock.Admit(existing, quantity, p.Stock)
	if !decision.Admitted {
		s.log.WithFields(logrus.Fields{
			"product_id": p.ID,
			"reason":     decision.Reason,
		}).Debug("Add to cart not admitted")
		return s.reject(decision.Result())
	}

	snap := s.snapshot()
	if idx < 0 {
		s.items = append(s.items, newItem(p, quantity))
	} else {
		s.items[idx].Quantity += quantity
		if p.Stock != nil {
			s.items[idx].StockAtAdd = copyInt(p.Stock)
		}
	}

	return s.persist(ctx, snap)
}

// RemoveItem removes the line with id; removing an absent id succeeds without a write
func (s *Store) RemoveItem(ctx context.Context, id string) outcome.Result {
	idx := s.indexOf(id)
	if idx < 0 {
		return s.succeed()
	}

	snap := s.snapshot()
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	return s.persist(ctx, snap)
}

// UpdateQuantity sets the quantity of a line, re-checking the stock ceiling seen at add time.
// A quantity below 1 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) outcome.Result {
	if quantity < 1 {
		return s.RemoveItem(ctx, id)
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return s.succeed()
	}
	if s.items[idx].Quantity == quantity {
		return s.succeed()
	}

	decision := stock.AdmitAbsolute(quantity, s.items[idx].StockAtAdd)
	if !decision.Admitted {
		return s.reject(decision.Result())
	}

	snap := s.snapshot()
	s.items[idx].Quantity = quantity
	return s.persist(ctx, snap)
}

// SelectPackaging records the packaging choice with the cart
func (s *Store) SelectPackaging(ctx context.Context, p Packaging) outcome.Result {
	if !p.Valid() {
		return s.reject(outcome.Reject(outcome.ReasonInvalidInput, fmt.Sprintf("unknown packaging %q", p)))
	}
	if p == s.packaging {
		return s.succeed()
	}

	snap := s.snapshot()
	s.packaging = p
	return s.persist(ctx, snap)
}

// Clear empties the cart and persists the empty state. Applied coupons are not touched.
func (s *Store) Clear(ctx context.Context) outcome.Result {
	snap := s.snapshot()
	s.items = []CartItem{}
	return s.persist(ctx, snap)
}

// Subtotal sums the charged unit price times quantity over all lines
func (s *Store) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Total is the subtotal minus the applied coupon's discount, floored at zero
func (s *Store) Total(applied *coupon.Coupon) decimal.Decimal {
	subtotal := s.Subtotal()
	total := subtotal.Sub(coupon.Discount(applied, subtotal))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Items returns a copy of the cart lines
func (s *Store) Items() []CartItem {
	return copyItems(s.items)
}

// ItemCount returns the number of units in the cart
func (s *Store) ItemCount() int {
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Packaging returns the selected packaging
func (s *Store) Packaging() Packaging {
	return s.packaging
}

// LastError returns the message of the last failed or degraded operation
func (s *Store) LastError() string {
	return s.lastError
}

// Mode returns the session mode the cart persists under
func (s *Store) Mode() session.Mode {
	return s.mode
}

// View returns the current read model
func (s *Store) View() View {
	return View{
		Items:     s.Items(),
		Subtotal:  s.Subtotal(),
		ItemCount: s.ItemCount(),
		Packaging: s.packaging,
		LastError: s.lastError,
	}
}

// Subscribe registers fn to receive the view after every change; call the returned func to stop
func (s *Store) Subscribe(fn func(View)) func() {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		delete(s.subscribers, id)
	}
}

// SwitchMode moves the cart to a new session mode. Signing in loads the user's remote
// cart; when there is none, the guest cart is adopted and written as the initial remote state.
// When the new scope cannot be read the cart stays in its current mode, so the switch can be retried.
func (s *Store) SwitchMode(ctx context.Context, mode session.Mode) outcome.Result {
	if mode == s.mode {
		return s.succeed()
	}

	from := s.mode
	entry := s.log.WithFields(logrus.Fields{"from": from.String(), "to": mode.String()})

	var remote State
	found, err := s.blobs.Load(ctx, mode.Scope(s.deviceID), persistence.CartBlob, &remote)
	if err != nil {
		// writing now would overwrite a cart we have not seen
		entry.WithError(err).Warn("Failed to load cart for new session mode")
		return s.finish(outcome.RollBack(outcome.ReasonPersistenceFailure, "could not load your saved cart, please try again"))
	}

	var local []CartItem
	if from.IsGuest() {
		local = s.items
	}
	s.mode = mode

	snap := s.snapshot()
	if found {
		s.items = persistence.Reconcile(local, sanitize(remote.Items), true)
		s.packaging = remote.SelectedPackaging
		if !s.packaging.Valid() {
			s.packaging = PackagingFree
		}
		entry.WithField("items", len(s.items)).Info("Loaded cart for session mode")
		return s.finish(outcome.Ok())
	}

	s.items = persistence.Reconcile(local, nil, false)
	if !from.IsGuest() {
		s.packaging = PackagingFree
	}
	if mode.IsGuest() {
		return s.finish(outcome.Ok())
	}

	entry.WithField("items", len(s.items)).Info("Adopting device cart as account cart")
	return s.persist(ctx, snap)
}

func (s *Store) persist(ctx context.Context, snap snapshot) outcome.Result {
	scope := s.scope()
	report := persistence.WriteWithFallback(ctx, s.blobs, scope, persistence.CartBlob, newState(s.items, s.packaging))
	res := report.Result()

	switch {
	case !res.Success:
		s.restore(snap)
		s.log.WithError(report.Err).WithField("scope", scope.String()).Warn("Cart write failed, rolled back")
	case res.Warning():
		s.log.WithError(report.Err).WithField("scope", scope.String()).Warn("Cart saved on device only")
	}

	return s.finish(res)
}

func (s *Store) finish(res outcome.Result) outcome.Result {
	if res.Success && !res.Warning() {
		s.lastError = ""
	} else {
		s.lastError = res.Error
	}
	s.notify()
	return res
}

func (s *Store) succeed() outcome.Result {
	s.lastError = ""
	return outcome.Ok()
}

func (s *Store) reject(res outcome.Result) outcome.Result {
	s.lastError = res.Error
	s.notify()
	return res
}

func (s *Store) notify() {
	if len(s.subscribers) == 0 {
		return
	}
	v := s.View()
	for _, fn := range s.subscribers {
		fn(v)
	}
}

func (s *Store) scope() session.Scope {
	return s.mode.Scope(s.deviceID)
}

func (s *Store) snapshot() snapshot {
	return snapshot{items: copyItems(s.items), packaging: s.packaging}
}

func (s *Store) restore(snap snapshot) {
	s.items = snap.items
	s.packaging = snap.packaging
}

func (s *Store) apply(st State) {
	s.items = persistence.Reconcile(nil, sanitize(st.Items), true)
	s.packaging = st.SelectedPackaging
	if !s.packaging.Valid() {
		s.packaging = PackagingFree
	}
}

// sanitize drops lines a hand-edited or corrupted blob could carry
func sanitize(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity < 1 {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func validateProduct(p Product) error {
	if err := validation.Struct(p); err != nil {
		return err
	}
	if p.DiscountedPrice != nil && p.DiscountedPrice.GreaterThan(p.Price) {
		return fmt.Errorf("discountedPrice must not exceed price")
	}
	return nil
}
