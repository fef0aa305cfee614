// internal/domain/wishlist/store.go
package wishlist

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/domain/session"
	"github.com/your-org/commerce-session/internal/pkg/validation"
)

// CartAdder is the part of the cart MoveToCart needs
type CartAdder interface {
	AddItem(ctx context.Context, p cart.Product, quantity int) outcome.Result
}

// Store owns one device session's wishlist, with the same optimistic write protocol as the cart
type Store struct {
	blobs    persistence.BlobStore
	deviceID string
	mode     session.Mode
	log      *logrus.Entry

	items     []WishlistItem
	lastError string

	subscribers map[int]func(View)
	nextSub     int
}

// NewStore creates an empty wishlist for a device in the given mode
func NewStore(blobs persistence.BlobStore, deviceID string, mode session.Mode, log *logrus.Entry) *Store {
	return &Store{
		blobs:       blobs,
		deviceID:    deviceID,
		mode:        mode,
		log:         log.WithFields(logrus.Fields{"component": "wishlist", "session_id": deviceID}),
		items:       []WishlistItem{},
		subscribers: make(map[int]func(View)),
	}
}

// Hydrate loads the blob of the current scope
func (s *Store) Hydrate(ctx context.Context) error {
	var st State
	found, err := s.blobs.Load(ctx, s.scope(), persistence.WishlistBlob, &st)
	if err != nil {
		return fmt.Errorf("failed to load wishlist: %w", err)
	}
	if found {
		s.items = persistence.Reconcile(nil, sanitize(st.Items), true)
	}
	s.notify()
	return nil
}

// AddItem saves p; a product already on the list is rejected with AlreadyExists
func (s *Store) AddItem(ctx context.Context, p cart.Product) outcome.Result {
	if err := validation.Struct(p); err != nil {
		return s.reject(outcome.Reject(outcome.ReasonInvalidInput, err.Error()))
	}
	if s.Contains(p.ID) {
		return s.reject(outcome.Reject(outcome.ReasonAlreadyExists, fmt.Sprintf("%s is already in your wishlist", p.Name)))
	}

	snap := s.snapshot()
	s.items = append(s.items, itemFrom(p))
	return s.persist(ctx, snap)
}

// RemoveItem removes id; removing an absent id succeeds without a write
func (s *Store) RemoveItem(ctx context.Context, id string) outcome.Result {
	idx := s.indexOf(id)
	if idx < 0 {
		s.lastError = ""
		return outcome.Ok()
	}

	snap := s.snapshot()
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	return s.persist(ctx, snap)
}

// MoveToCart adds one unit of p to the cart and only then removes it from the wishlist.
// A cart failure is returned as is and leaves the wishlist untouched.
func (s *Store) MoveToCart(ctx context.Context, p cart.Product, c CartAdder) outcome.Result {
	added := c.AddItem(ctx, p, 1)
	if !added.Success {
		s.log.WithFields(logrus.Fields{
			"product_id": p.ID,
			"reason":     added.Reason,
		}).Debug("Move to cart refused by cart")
		return s.reject(added)
	}

	removed := s.RemoveItem(ctx, p.ID)
	if !removed.Success {
		// the item is in the cart; report the wishlist write failure without undoing the add
		return removed
	}
	if added.Warning() {
		return s.finish(added)
	}
	return removed
}

// Contains reports whether id is on the list
func (s *Store) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

// Items returns a copy of the saved items
func (s *Store) Items() []WishlistItem {
	out := make([]WishlistItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the saved item with id
func (s *Store) Item(id string) (WishlistItem, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return WishlistItem{}, false
	}
	return s.items[idx], true
}

// LastError returns the message of the last failed or degraded operation
func (s *Store) LastError() string {
	return s.lastError
}

// Mode returns the session mode the wishlist persists under
func (s *Store) Mode() session.Mode {
	return s.mode
}

// View returns the current read model
func (s *Store) View() View {
	return View{Items: s.Items(), Count: len(s.items), LastError: s.lastError}
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

// SwitchMode moves the wishlist to a new session mode, merging the guest list on sign-in
func (s *Store) SwitchMode(ctx context.Context, mode session.Mode) outcome.Result {
	if mode == s.mode {
		s.lastError = ""
		return outcome.Ok()
	}

	from := s.mode
	entry := s.log.WithFields(logrus.Fields{"from": from.String(), "to": mode.String()})

	var remote State
	found, err := s.blobs.Load(ctx, mode.Scope(s.deviceID), persistence.WishlistBlob, &remote)
	if err != nil {
		// stay in the current mode; the switch is retried on the next request
		entry.WithError(err).Warn("Failed to load wishlist for new session mode")
		return s.finish(outcome.RollBack(outcome.ReasonPersistenceFailure, "could not load your saved wishlist, please try again"))
	}

	var local []WishlistItem
	if from.IsGuest() {
		local = s.items
	}
	s.mode = mode

	snap := s.snapshot()
	if found {
		s.items = persistence.Reconcile(local, sanitize(remote.Items), true)
		return s.finish(outcome.Ok())
	}

	s.items = persistence.Reconcile(local, nil, false)
	if mode.IsGuest() {
		return s.finish(outcome.Ok())
	}

	entry.WithField("items", len(s.items)).Info("Adopting device wishlist as account wishlist")
	return s.persist(ctx, snap)
}

func (s *Store) persist(ctx context.Context, snap []WishlistItem) outcome.Result {
	scope := s.scope()
	report := persistence.WriteWithFallback(ctx, s.blobs, scope, persistence.WishlistBlob, newState(s.items))
	res := report.Result()

	switch {
	case !res.Success:
		s.items = snap
		s.log.WithError(report.Err).WithField("scope", scope.String()).Warn("Wishlist write failed, rolled back")
	case res.Warning():
		s.log.WithError(report.Err).WithField("scope", scope.String()).Warn("Wishlist saved on device only")
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

func (s *Store) snapshot() []WishlistItem {
	return s.Items()
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func sanitize(items []WishlistItem) []WishlistItem {
	out := make([]WishlistItem, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			out = append(out, it)
		}
	}
	return out
}
