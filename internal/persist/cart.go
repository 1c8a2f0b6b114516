package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-checkout/internal/model"
)

// CartTTL bounds how long an untouched cart survives.
const CartTTL = 30 * 24 * time.Hour

// CartStates persists one CartState per shopper.
type CartStates struct {
	store Store
}

func NewCartStates(store Store) *CartStates {
	return &CartStates{store: store}
}

// Load returns the shopper's persisted cart or ErrMiss.
func (c *CartStates) Load(ctx context.Context, shopperID string) (model.CartState, error) {
	data, err := c.store.Get(ctx, cartKey(shopperID))
	if err != nil {
		return model.CartState{}, err
	}
	var state model.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.CartState{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return state, nil
}

func (c *CartStates) Save(ctx context.Context, shopperID string, state model.CartState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return c.store.Set(ctx, cartKey(shopperID), data, CartTTL)
}

func (c *CartStates) Delete(ctx context.Context, shopperID string) error {
	return c.store.Delete(ctx, cartKey(shopperID))
}

func cartKey(shopperID string) string {
	return fmt.Sprintf("cart:%s", shopperID)
}
