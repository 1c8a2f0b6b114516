package storefront

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/persist"
	"storefront-checkout/internal/pricing"
)

func TestRegistry_GetCreatesOnce(t *testing.T) {
	var syncs atomic.Int32
	mock := &adapter.Mock{
		GetCartFunc: func(ctx context.Context) (*adapter.Cart, error) {
			syncs.Add(1)
			return &adapter.Cart{}, nil
		},
	}
	r := NewRegistry(Config{Marketplace: mock, Engine: pricing.Default()})

	var wg sync.WaitGroup
	got := make([]*Shopper, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get(context.Background(), "u1")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, int32(1), syncs.Load())
	assert.True(t, got[0].Cart.Loaded())

	other := r.Get(context.Background(), "u2")
	assert.NotSame(t, got[0], other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RestoresThenSyncs(t *testing.T) {
	ctx := context.Background()
	states := persist.NewCartStates(persist.NewMemoryStore())
	require.NoError(t, states.Save(ctx, "u1", model.CartState{
		Items: []model.LineItem{{ProductID: "A", Quantity: 2, UnitPrice: decimal.NewFromInt(100)}},
	}))

	release := make(chan struct{})
	var token string
	mock := &adapter.Mock{
		GetCartFunc: func(ctx context.Context) (*adapter.Cart, error) {
			token = adapter.Token(ctx)
			<-release
			return &adapter.Cart{Items: []model.LineItem{{ProductID: "B", Quantity: 1, UnitPrice: decimal.NewFromInt(40)}}}, nil
		},
	}
	r := NewRegistry(Config{Marketplace: mock, States: states, Engine: pricing.Default()})

	reqCtx, cancel := context.WithCancel(adapter.WithToken(ctx, "tok"))
	s := r.Get(reqCtx, "u1")
	cancel()

	snap := s.Cart.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "A", snap.Items[0].ProductID)
	assert.False(t, s.Cart.Loaded())

	close(release)
	require.NoError(t, r.Wait(ctx))
	assert.Equal(t, "tok", token)

	snap = s.Cart.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "B", snap.Items[0].ProductID)
	assert.True(t, s.Cart.Loaded())
}

func TestRegistry_WaitHonoursContext(t *testing.T) {
	r := NewRegistry(Config{Marketplace: &adapter.Mock{}, Engine: pricing.Default()})
	block := make(chan struct{})
	defer close(block)
	r.Go(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
