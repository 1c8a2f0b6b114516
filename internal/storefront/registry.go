// Package storefront keeps the live state of every shopper the server has
// seen: one Cart Store and one checkout orchestrator each.
package storefront

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/cartstore"
	"storefront-checkout/internal/checkout"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/persist"
	"storefront-checkout/internal/pricing"
)

// Config wires a Registry.
type Config struct {
	Marketplace adapter.Marketplace
	States      *persist.CartStates
	Engine      pricing.Engine
	Coupons     *pricing.Coupons
	Gateway     *gateway.Adapter
	Logger      *slog.Logger
	// SyncTimeout bounds the background cart sync started for a new
	// shopper. Default 15s.
	SyncTimeout time.Duration
}

// Shopper is one shopper's live state.
type Shopper struct {
	ID       string
	Cart     *cartstore.Store
	Checkout *checkout.Orchestrator

	ready chan struct{}
}

// Registry creates shoppers on first use and runs their background work.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	shoppers map[string]*Shopper

	wg sync.WaitGroup
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 15 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		logger:   cfg.Logger,
		shoppers: make(map[string]*Shopper),
	}
}

// Get returns the shopper, creating it on first use. A new shopper's cart
// is restored from persistence and then synced with the server in the
// background using ctx's credentials.
func (r *Registry) Get(ctx context.Context, shopperID string) *Shopper {
	r.mu.Lock()
	if s, ok := r.shoppers[shopperID]; ok {
		r.mu.Unlock()
		<-s.ready
		return s
	}

	cart := cartstore.New(cartstore.Config{
		ShopperID: shopperID,
		Cart:      r.cfg.Marketplace,
		States:    r.cfg.States,
		Engine:    r.cfg.Engine,
		Coupons:   r.cfg.Coupons,
		Logger:    r.logger,
	})
	s := &Shopper{
		ID:    shopperID,
		Cart:  cart,
		ready: make(chan struct{}),
		Checkout: checkout.NewOrchestrator(checkout.Deps{
			ShopperID: shopperID,
			Cart:      cart,
			Products:  r.cfg.Marketplace,
			Orders:    r.cfg.Marketplace,
			Payments:  r.cfg.Marketplace,
			Gateway:   r.cfg.Gateway,
			Engine:    r.cfg.Engine,
			Logger:    r.logger,
		}),
	}
	r.shoppers[shopperID] = s
	r.mu.Unlock()

	if err := cart.Hydrate(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("failed to restore cart",
			slog.String("shopper_id", shopperID),
			slog.String("error", err.Error()))
	}
	close(s.ready)

	bg := context.WithoutCancel(ctx)
	r.Go(func() {
		sctx, cancel := context.WithTimeout(bg, r.cfg.SyncTimeout)
		defer cancel()
		// SyncCart marks the cart loaded even when the server is down.
		cart.SyncCart(sctx)
	})
	return s
}

// Gateway returns the payment gateway adapter, or nil when none is
// configured.
func (r *Registry) Gateway() *gateway.Adapter { return r.cfg.Gateway }

// Len reports how many shoppers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shoppers)
}

// Go runs fn in the background; Wait blocks until all such work is done.
func (r *Registry) Go(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// Wait blocks until background work finishes or ctx ends.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
