// Package cartstore holds one shopper's cart: the single source of truth for
// what is in it, reconciled with the remote cart service and kept usable
// when that service is down.
//
// Every mutation calls the remote service first. On success the server's
// list replaces the local one wholesale; on failure the mutation is applied
// locally to the last-known list. Either way the derived totals are
// recomputed and persisted before the mutation returns. Mutations run one
// at a time.
package cartstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/persist"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/reconcile"
)

// NoticeOffline is reported when a change could only be applied locally.
const NoticeOffline = "cart service unavailable; change saved locally and will be replaced on next sync"

// Config wires a Store.
type Config struct {
	ShopperID string
	Cart      adapter.CartService
	// States persists the cart between restarts. Nil disables persistence.
	States  *persist.CartStates
	Engine  pricing.Engine
	Coupons *pricing.Coupons
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result is the outcome of a mutation. Notice is set when the remote call
// failed and the change was applied locally; it is informational only.
type Result struct {
	State  model.CartState `json:"state"`
	Notice string          `json:"notice,omitempty"`
}

// Store is one shopper's cart.
type Store struct {
	shopperID string
	cart      adapter.CartService
	states    *persist.CartStates
	engine    pricing.Engine
	coupons   *pricing.Coupons
	logger    *slog.Logger
	now       func() time.Time

	// writer admits one mutation at a time; later callers wait their turn.
	writer chan struct{}

	mu    sync.RWMutex
	state model.CartState

	sync     singleflight.Group
	loaded   chan struct{}
	loadOnce sync.Once

	subsMu  sync.Mutex
	subs    map[int]func(model.CartState)
	nextSub int
}

// New creates an empty Store. Call Hydrate to restore persisted state and
// SyncCart to pull the server's cart.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		shopperID: cfg.ShopperID,
		cart:      cfg.Cart,
		states:    cfg.States,
		engine:    cfg.Engine,
		coupons:   cfg.Coupons,
		logger:    logger.With(slog.String("shopper_id", cfg.ShopperID)),
		now:       now,
		writer:    make(chan struct{}, 1),
		loaded:    make(chan struct{}),
		subs:      make(map[int]func(model.CartState)),
	}
	s.state = s.compute(nil, "")
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Hydrate restores the persisted cart. A missing record leaves the cart
// empty. Persisted totals are ignored and recomputed.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.states == nil {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	saved, err := s.states.Load(ctx, s.shopperID)
	if errors.Is(err, persist.ErrMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	s.commit(ctx, saved.Items, saved.AppliedCoupon, false)
	s.logger.DebugContext(ctx, "cart hydrated", slog.Int("lines", len(saved.Items)))
	return nil
}

// SyncCart overwrites local items with the server's. Concurrent callers
// share one remote call. On failure the local cart is kept and the error
// returned for information. The first attempt, successful or not, marks
// the cart loaded.
func (s *Store) SyncCart(ctx context.Context) (model.CartState, error) {
	v, err, _ := s.sync.Do("sync", func() (interface{}, error) {
		defer s.markLoaded()

		if err := s.acquire(ctx); err != nil {
			return s.Snapshot(), err
		}
		defer s.release()

		current := s.Snapshot()
		cart, err := s.cart.GetCart(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "cart sync failed, keeping local cart", slog.Any("error", err))
			return current, err
		}
		s.logDivergence(ctx, "sync", current.Items, cart.Items)
		return s.commit(ctx, reconcile.FillDetails(cart.Items, current.Items), current.AppliedCoupon, true), nil
	})
	return v.(model.CartState), err
}

// Loaded reports whether the first sync attempt has finished.
func (s *Store) Loaded() bool {
	select {
	case <-s.loaded:
		return true
	default:
		return false
	}
}

// WaitLoaded blocks until the first sync attempt has finished.
func (s *Store) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) markLoaded() {
	s.loadOnce.Do(func() { close(s.loaded) })
}

// Add adds item to the cart. An existing line for the same product, size
// and color grows; the combined quantity is clamped to the line's ceiling.
func (s *Store) Add(ctx context.Context, item model.LineItem) (Result, error) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return s.mutate(ctx, "add", func(current []model.LineItem) (remoteFunc, []model.LineItem, bool) {
		max := item.MaxQuantity
		existing := 0
		if line, ok := reconcile.Find(current, item.Key()); ok {
			existing = line.Quantity
			if max == 0 {
				max = line.MaxQuantity
			}
		}
		delta := item.Quantity
		if max > 0 && existing+delta > max {
			delta = max - existing
		}
		if delta <= 0 {
			return nil, nil, false
		}
		add := item
		add.Quantity = delta
		remote := func(ctx context.Context) (*adapter.Cart, error) {
			return s.cart.AddToCart(ctx, &adapter.AddToCartRequest{
				ProductID: add.ProductID,
				Quantity:  add.Quantity,
				Size:      add.Size,
				Color:     add.Color,
			})
		}
		return remote, reconcile.Add(current, add), true
	}, []model.LineItem{item})
}

// UpdateQuantity sets the quantity of the line with key. q <= 0 removes the
// line; larger values clamp to the line's ceiling. Unknown keys are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, key model.LineKey, q int) (Result, error) {
	if q <= 0 {
		return s.Remove(ctx, key)
	}
	return s.mutate(ctx, "update_quantity", func(current []model.LineItem) (remoteFunc, []model.LineItem, bool) {
		line, ok := reconcile.Find(current, key)
		if !ok {
			return nil, nil, false
		}
		q := model.ClampQuantity(q, line.MaxQuantity)
		remote := func(ctx context.Context) (*adapter.Cart, error) {
			return s.cart.UpdateCartItem(ctx, &adapter.UpdateCartItemRequest{ProductID: key.ProductID, Quantity: q})
		}
		return remote, reconcile.SetQuantity(current, key, q), true
	}, nil)
}

// Remove drops the line with key. Removing an absent line is a no-op.
func (s *Store) Remove(ctx context.Context, key model.LineKey) (Result, error) {
	return s.mutate(ctx, "remove", func(current []model.LineItem) (remoteFunc, []model.LineItem, bool) {
		if _, ok := reconcile.Find(current, key); !ok {
			return nil, nil, false
		}
		remote := func(ctx context.Context) (*adapter.Cart, error) {
			return s.cart.RemoveFromCart(ctx, key.ProductID)
		}
		return remote, reconcile.Remove(current, key), true
	}, nil)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (Result, error) {
	return s.mutate(ctx, "clear", func([]model.LineItem) (remoteFunc, []model.LineItem, bool) {
		return s.cart.ClearCart, []model.LineItem{}, true
	}, nil)
}

// ApplyCouponCode applies code if it earns a discount on the current
// subtotal. It returns false, leaving the cart untouched, when the discount
// resolves to zero.
func (s *Store) ApplyCouponCode(ctx context.Context, code string) bool {
	if err := s.acquire(ctx); err != nil {
		return false
	}
	defer s.release()

	current := s.Snapshot()
	if s.coupons.ApplyCoupon(code, current.Subtotal).IsZero() {
		return false
	}
	s.commit(ctx, current.Items, code, true)
	return true
}

// RemoveCoupon drops any applied coupon.
func (s *Store) RemoveCoupon(ctx context.Context) (model.CartState, error) {
	if err := s.acquire(ctx); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	current := s.Snapshot()
	return s.commit(ctx, current.Items, "", true), nil
}

// Subscribe registers fn to receive every committed state. The returned
// function unsubscribes. fn runs on the mutating goroutine and must not
// call back into the Store's mutations.
func (s *Store) Subscribe(fn func(model.CartState)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

type remoteFunc func(ctx context.Context) (*adapter.Cart, error)

// planFunc decides a mutation against the current items: the remote call
// to make and the local fallback result. ok=false means nothing to do.
type planFunc func(current []model.LineItem) (remote remoteFunc, fallback []model.LineItem, ok bool)

// mutate runs one queued mutation. known supplies product detail for lines
// the server may return without it. Remote failures never escape; the only
// error is ctx ending while waiting for the queue.
func (s *Store) mutate(ctx context.Context, op string, plan planFunc, known []model.LineItem) (Result, error) {
	if err := s.acquire(ctx); err != nil {
		return Result{State: s.Snapshot()}, err
	}
	defer s.release()

	current := s.Snapshot()
	remote, fallback, ok := plan(current.Items)
	if !ok {
		return Result{State: current}, nil
	}

	cart, err := remote(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cart mutation failed remotely, applied locally",
			slog.String("op", op),
			slog.Any("error", err),
		)
		return Result{State: s.commit(ctx, fallback, current.AppliedCoupon, true), Notice: NoticeOffline}, nil
	}

	s.logDivergence(ctx, op, fallback, cart.Items)
	items := reconcile.FillDetails(cart.Items, append(current.Items, known...))
	return Result{State: s.commit(ctx, items, current.AppliedCoupon, true)}, nil
}

// commit recomputes state from items and coupon, stores it, persists it,
// and notifies subscribers.
func (s *Store) commit(ctx context.Context, items []model.LineItem, coupon string, persistIt bool) model.CartState {
	next := s.compute(items, coupon)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if persistIt && s.states != nil {
		if err := s.states.Save(context.WithoutCancel(ctx), s.shopperID, next); err != nil {
			s.logger.WarnContext(ctx, "cart persist failed", slog.Any("error", err))
		}
	}
	s.notify(next)
	return next.Clone()
}

// compute derives a CartState. A coupon that no longer earns a discount
// on the new subtotal is dropped.
func (s *Store) compute(items []model.LineItem, coupon string) model.CartState {
	items = model.CloneItems(items)
	for i := range items {
		items[i].Quantity = model.ClampQuantity(items[i].Quantity, items[i].MaxQuantity)
	}

	discount := decimal.Zero
	if coupon != "" {
		subtotal := s.engine.ComputeTotals(items, decimal.Zero).Subtotal
		discount = s.coupons.ApplyCoupon(coupon, subtotal)
		if discount.IsZero() {
			coupon = ""
		}
	}

	return model.CartState{
		Items:         items,
		Totals:        s.engine.ComputeTotals(items, discount),
		ItemCount:     model.CountItems(items),
		AppliedCoupon: coupon,
		UpdatedAt:     s.now(),
	}
}

func (s *Store) notify(state model.CartState) {
	s.subsMu.Lock()
	fns := make([]func(model.CartState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(state.Clone())
	}
}

func (s *Store) logDivergence(ctx context.Context, op string, local, server []model.LineItem) {
	diff := reconcile.Diff(local, server)
	if diff.IsEmpty() {
		return
	}
	s.logger.DebugContext(ctx, "server cart differs from local expectation",
		slog.String("op", op),
		slog.Int("added", len(diff.Added)),
		slog.Int("removed", len(diff.Removed)),
		slog.Int("changed", len(diff.Changed)),
	)
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.writer
}
