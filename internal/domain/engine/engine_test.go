package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/domain/session"
	"github.com/your-org/commerce-session/internal/infrastructure/docstore/memory"
	"github.com/your-org/commerce-session/internal/pkg/logger"
)

type mockLocal struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet error
}

func (m *mockLocal) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	v, ok := m.data[key]
	if !ok {
		return nil, persistence.ErrMiss
	}
	return v, nil
}

func (m *mockLocal) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *mockLocal) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newDeps() (Deps, *memory.Store) {
	deps, remote, _ := newDepsWithLocal()
	return deps, remote
}

func newDepsWithLocal() (Deps, *memory.Store, *mockLocal) {
	remote := memory.NewStore()
	log := logger.Discard()
	local := &mockLocal{data: make(map[string][]byte)}
	return Deps{
		Blobs:     persistence.NewAdapter(local, remote, log),
		Remote:    remote,
		Publisher: events.NopPublisher{},
		Log:       log,
	}, remote, local
}

func newEngine(t *testing.T, deps Deps) *Engine {
	t.Helper()
	e, err := New(context.Background(), "dev-1", deps)
	require.NoError(t, err)
	return e
}

func product(id, price string) cart.Product {
	return cart.Product{ID: id, Name: id, Price: decimal.RequireFromString(price)}
}

func TestSetUser_Transitions(t *testing.T) {
	deps, remote := newDeps()
	ctx := context.Background()
	remote.Put("coupons/c1", map[string]any{"code": "TEN", "type": "fixed", "value": 10, "isActive": true})

	e := newEngine(t, deps)
	require.True(t, e.Cart.AddItem(ctx, product("p1", "50"), 2).Success)

	tr := e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	assert.True(t, tr.Changed)
	assert.True(t, tr.Cart.Success)
	assert.Equal(t, "u1", e.UserID())
	assert.Len(t, e.Cart.Items(), 1)

	require.True(t, e.ApplyCoupon(ctx, "TEN").Success)

	// same identity again is a no-op
	tr = e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	assert.False(t, tr.Changed)
	assert.NotNil(t, e.Coupons.AppliedCoupon())
	assert.Len(t, e.Cart.Items(), 1)

	// another user gets their own state and no coupon
	tr = e.SetUser(ctx, &session.CurrentUser{ID: "u2"})
	assert.True(t, tr.Changed)
	assert.Nil(t, e.Coupons.AppliedCoupon())
	assert.Empty(t, e.Cart.Items())

	e.SetUser(ctx, nil)
	assert.True(t, e.Mode().IsGuest())
	assert.Equal(t, "", e.UserID())
}

func TestCheckoutSnapshot(t *testing.T) {
	deps, remote := newDeps()
	ctx := context.Background()
	remote.Put("coupons/c1", map[string]any{
		"code": "PCT", "type": "percentage", "value": 20, "maxDiscount": 30, "isActive": true,
	})

	e := newEngine(t, deps)
	e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	require.True(t, e.Cart.AddItem(ctx, product("p1", "250"), 2).Success)
	require.True(t, e.Cart.SelectPackaging(ctx, cart.PackagingEssential).Success)
	require.True(t, e.ApplyCoupon(ctx, "PCT").Success)

	snap := e.CheckoutSnapshot()

	assert.Equal(t, "u1", snap.UserID)
	assert.True(t, decimal.NewFromInt(500).Equal(snap.Subtotal))
	assert.True(t, decimal.NewFromInt(30).Equal(snap.Discount))
	assert.True(t, decimal.NewFromInt(470).Equal(snap.Total))
	assert.Equal(t, cart.PackagingEssential, snap.Packaging)
	assert.Equal(t, "PCT", snap.AppliedCoupon.Code)
	assert.Len(t, snap.Items, 1)
}

func TestCompleteCheckout(t *testing.T) {
	deps, remote := newDeps()
	ctx := context.Background()
	remote.Put("coupons/c1", map[string]any{"code": "SHIP", "type": "free_shipping", "isActive": true})

	e := newEngine(t, deps)
	e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	require.True(t, e.Cart.AddItem(ctx, product("p1", "10"), 1).Success)
	require.True(t, e.ApplyCoupon(ctx, "SHIP").Success)

	require.True(t, e.CompleteCheckout(ctx).Success)
	assert.Empty(t, e.Cart.Items())
	assert.Nil(t, e.Coupons.AppliedCoupon())
}

func TestMoveToCart_UnknownItem(t *testing.T) {
	deps, _ := newDeps()
	e := newEngine(t, deps)

	res := e.MoveToCart(context.Background(), "nope")
	assert.Equal(t, outcome.ReasonInvalidInput, res.Reason)
}

func TestNew_LoadsDeviceState(t *testing.T) {
	deps, _ := newDeps()
	ctx := context.Background()

	first := newEngine(t, deps)
	require.True(t, first.Cart.AddItem(ctx, product("p1", "10"), 3).Success)
	require.True(t, first.Wishlist.AddItem(ctx, product("p2", "10")).Success)

	second := newEngine(t, deps)
	assert.Equal(t, 3, second.Cart.ItemCount())
	assert.True(t, second.Wishlist.Contains("p2"))
}

func TestRegistry_GetSharesEngine(t *testing.T) {
	deps, _ := newDeps()
	r := NewRegistry(deps, time.Minute)

	var wg sync.WaitGroup
	got := make([]*Engine, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.Get(context.Background(), "dev-1")
			assert.NoError(t, err)
			got[i] = e
		}(i)
	}
	wg.Wait()

	for _, e := range got {
		assert.Same(t, got[0], e)
	}
	assert.Equal(t, 1, r.Len())

	_, err := r.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestRegistry_Evict(t *testing.T) {
	deps, _ := newDeps()
	r := NewRegistry(deps, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Get(context.Background(), "old")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	_, err = r.Get(context.Background(), "fresh")
	require.NoError(t, err)
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Evict())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_HandleCheckoutCompleted(t *testing.T) {
	deps, remote := newDeps()
	ctx := context.Background()
	r := NewRegistry(deps, time.Minute)

	e, err := r.Get(ctx, "dev-1")
	require.NoError(t, err)
	e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	require.True(t, e.Cart.AddItem(ctx, product("p1", "10"), 1).Success)

	require.NoError(t, r.HandleCheckoutCompleted(ctx, events.CheckoutCompleted{UserID: "u1"}))
	assert.Empty(t, e.Cart.Items())

	// no live engine: the account cart document is emptied
	remote.Put(persistence.RemotePath("u2", persistence.CartBlob), map[string]any{
		"version": 1,
		"items":   []any{map[string]any{"id": "p9", "quantity": 1, "price": "5", "discountedPrice": "5"}},
	})
	require.NoError(t, r.HandleCheckoutCompleted(ctx, events.CheckoutCompleted{UserID: "u2"}))

	doc, err := remote.GetDocument(ctx, persistence.RemotePath("u2", persistence.CartBlob))
	require.NoError(t, err)
	assert.Empty(t, doc.Data["items"])
}

func TestSetUser_RetriesAfterRemoteReadFailure(t *testing.T) {
	deps, remote := newDeps()
	ctx := context.Background()
	remote.Put(persistence.RemotePath("u1", persistence.CartBlob), map[string]any{
		"version": 1,
		"items":   []any{map[string]any{"id": "acct", "quantity": 1, "price": "5", "discountedPrice": "5"}},
	})

	e := newEngine(t, deps)
	require.True(t, e.Cart.AddItem(ctx, product("p1", "10"), 1).Success)

	remote.FailReads = errors.New("unavailable")
	tr := e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	assert.False(t, tr.Cart.Success)
	assert.Equal(t, outcome.ReasonPersistenceFailure, tr.Cart.Reason)
	assert.True(t, e.Mode().IsGuest())
	assert.Equal(t, "", e.UserID())

	remote.FailReads = nil
	tr = e.SetUser(ctx, &session.CurrentUser{ID: "u1"})
	assert.True(t, tr.Changed)
	assert.True(t, tr.Cart.Success)
	assert.Equal(t, "u1", e.UserID())
	assert.Equal(t, session.Authenticated("u1"), e.Mode())

	ids := []string{}
	for _, it := range e.Cart.Items() {
		ids = append(ids, it.ID)
	}
	assert.Contains(t, ids, "acct")
}

func TestRegistry_GetDoesNotCacheFailedLoad(t *testing.T) {
	deps, _, local := newDepsWithLocal()
	ctx := context.Background()
	r := NewRegistry(deps, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	e, err := r.Get(ctx, "dev-1")
	require.NoError(t, err)
	e.Lock()
	require.True(t, e.Cart.AddItem(ctx, product("p1", "10"), 2).Success)
	e.Unlock()

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, r.Evict())

	local.mu.Lock()
	local.failGet = errors.New("connection refused")
	local.mu.Unlock()

	_, err = r.Get(ctx, "dev-1")
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())

	local.mu.Lock()
	local.failGet = nil
	local.mu.Unlock()

	e, err = r.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Cart.ItemCount())
}

func TestRegistry_GetIgnoresCallerCancellation(t *testing.T) {
	deps, _ := newDeps()
	r := NewRegistry(deps, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := r.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestRegistry_EvictSkipsLockedEngine(t *testing.T) {
	deps, _ := newDeps()
	r := NewRegistry(deps, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	e, err := r.Get(context.Background(), "busy")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	e.Lock()
	assert.Equal(t, 0, r.Evict())
	assert.Equal(t, 1, r.Len())
	e.Unlock()

	assert.Equal(t, 1, r.Evict())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_HandleCheckoutCompletedClearsDeviceCart(t *testing.T) {
	deps, _ := newDeps()
	ctx := context.Background()
	r := NewRegistry(deps, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	e, err := r.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.True(t, e.Cart.AddItem(ctx, product("p1", "10"), 1).Success)

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, r.Evict())

	require.NoError(t, r.HandleCheckoutCompleted(ctx, events.CheckoutCompleted{SessionID: "dev-1"}))

	e, err = r.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Empty(t, e.Cart.Items())
}
