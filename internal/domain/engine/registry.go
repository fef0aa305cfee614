// internal/domain/engine/registry.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/cart"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/domain/persistence"
	"github.com/your-org/commerce-session/internal/domain/session"
	"golang.org/x/sync/singleflight"
)

// createTimeout bounds loading a new engine's device state
const createTimeout = 10 * time.Second

type entry struct {
	engine   *Engine
	lastSeen time.Time
}

// Registry keeps one engine per device session and drops engines left idle
type Registry struct {
	mu      sync.Mutex
	engines map[string]*entry
	group   singleflight.Group

	deps    Deps
	idleTTL time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

// NewRegistry creates a new engine registry
func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	return &Registry{
		engines: make(map[string]*entry),
		deps:    deps,
		idleTTL: idleTTL,
		now:     time.Now,
		log:     deps.Log.WithField("component", "registry"),
	}
}

// Get returns the engine of a device session, creating it on first use.
// Concurrent first requests for one id share a single creation, which is not tied
// to any one caller's cancellation. A failed creation is not cached.
func (r *Registry) Get(ctx context.Context, id string) (*Engine, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	if e := r.lookup(id); e != nil {
		return e, nil
	}

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		if e := r.lookup(id); e != nil {
			return e, nil
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createTimeout)
		defer cancel()

		e, err := New(cctx, id, r.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to open session %s: %w", id, err)
		}

		r.mu.Lock()
		r.engines[id] = &entry{engine: e, lastSeen: r.now()}
		r.mu.Unlock()

		r.log.WithField("session_id", id).Debug("Created session engine")
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (r *Registry) lookup(id string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ent, ok := r.engines[id]; ok {
		ent.lastSeen = r.now()
		return ent.engine
	}
	return nil
}

// Len returns the number of live engines
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Evict drops engines idle longer than the idle TTL and returns how many were dropped.
// Their state is already persisted, so the next request reloads it. An engine that
// is locked by a request in flight is kept until a later sweep.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, ent := range r.engines {
		if !ent.lastSeen.Before(cutoff) {
			continue
		}
		if !ent.engine.mu.TryLock() {
			continue
		}
		delete(r.engines, id)
		ent.engine.mu.Unlock()
		n++
	}
	return n
}

// Run evicts idle engines every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.log.WithFields(logrus.Fields{"evicted": n, "live": r.Len()}).Debug("Evicted idle session engines")
			}
		}
	}
}

// HandleCheckoutCompleted clears the cart of every live engine of the buyer. With no
// live engine, the stored carts are emptied directly: the account cart document of a
// signed-in buyer and the device cart of the checkout session.
func (r *Registry) HandleCheckoutCompleted(ctx context.Context, evt events.CheckoutCompleted) error {
	targets := r.matching(evt)
	log := r.log.WithFields(logrus.Fields{"user_id": evt.UserID, "session_id": evt.SessionID})

	var failed error
	for _, e := range targets {
		e.Lock()
		res := e.CompleteCheckout(ctx)
		e.Unlock()
		if !res.Success {
			failed = fmt.Errorf("failed to clear cart of session %s: %s", e.ID(), res.Error)
		}
	}

	if len(targets) == 0 {
		if evt.UserID != "" {
			scope := session.RemoteUser(evt.UserID, evt.SessionID)
			if err := r.deps.Blobs.Save(ctx, scope, persistence.CartBlob, cart.EmptyState()); err != nil {
				return fmt.Errorf("failed to clear account cart: %w", err)
			}
		}
		if evt.SessionID != "" {
			scope := session.LocalDevice(evt.SessionID)
			if err := r.deps.Blobs.Save(ctx, scope, persistence.CartBlob, cart.EmptyState()); err != nil {
				return fmt.Errorf("failed to clear device cart: %w", err)
			}
		}
	}

	log.WithField("engines", len(targets)).Info("Checkout completed, cart cleared")
	return failed
}

func (r *Registry) matching(evt events.CheckoutCompleted) []*Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Engine
	for id, ent := range r.engines {
		e := ent.engine
		if (evt.SessionID != "" && id == evt.SessionID) || (evt.UserID != "" && e.UserID() == evt.UserID) {
			out = append(out, e)
		}
	}
	return out
}
