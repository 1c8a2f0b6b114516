package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront-checkout/internal/model"
)

// PendingVerifications persists gateway payments awaiting server
// verification. Records never expire: a shopper may have been charged for
// each one. Each record is also indexed by gateway order id so a gateway
// callback can find it without knowing the shopper.
type PendingVerifications struct {
	store Store
}

func NewPendingVerifications(store Store) *PendingVerifications {
	return &PendingVerifications{store: store}
}

func (p *PendingVerifications) Save(ctx context.Context, rec model.PendingVerification) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pending verification failed: %w", err)
	}
	if err := p.store.Set(ctx, pendingKey(rec.ShopperID, rec.SessionID), data, 0); err != nil {
		return err
	}
	if id := rec.Request.GatewayOrderID; id != "" {
		ref := rec.ShopperID + "\n" + rec.SessionID
		if err := p.store.Set(ctx, gatewayKey(id), []byte(ref), 0); err != nil {
			return fmt.Errorf("index pending verification failed: %w", err)
		}
	}
	return nil
}

// Load returns the record for one checkout session or ErrMiss.
func (p *PendingVerifications) Load(ctx context.Context, shopperID, sessionID string) (model.PendingVerification, error) {
	data, err := p.store.Get(ctx, pendingKey(shopperID, sessionID))
	if err != nil {
		return model.PendingVerification{}, err
	}
	var rec model.PendingVerification
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PendingVerification{}, fmt.Errorf("unmarshal pending verification failed: %w", err)
	}
	return rec, nil
}

// LoadByGatewayOrder returns the record for a gateway order id or ErrMiss.
func (p *PendingVerifications) LoadByGatewayOrder(ctx context.Context, gatewayOrderID string) (model.PendingVerification, error) {
	ref, err := p.store.Get(ctx, gatewayKey(gatewayOrderID))
	if err != nil {
		return model.PendingVerification{}, err
	}
	shopperID, sessionID, ok := strings.Cut(string(ref), "\n")
	if !ok {
		return model.PendingVerification{}, fmt.Errorf("malformed pending verification index for %s", gatewayOrderID)
	}
	rec, err := p.Load(ctx, shopperID, sessionID)
	if err != nil {
		return model.PendingVerification{}, err
	}
	if rec.Request.GatewayOrderID != gatewayOrderID {
		return model.PendingVerification{}, ErrMiss
	}
	return rec, nil
}

// Delete removes the session's record and its gateway index entry.
func (p *PendingVerifications) Delete(ctx context.Context, shopperID, sessionID string) error {
	rec, err := p.Load(ctx, shopperID, sessionID)
	switch {
	case errors.Is(err, ErrMiss):
		return nil
	case err != nil:
		return err
	}
	if id := rec.Request.GatewayOrderID; id != "" {
		if err := p.store.Delete(ctx, gatewayKey(id)); err != nil {
			return err
		}
	}
	return p.store.Delete(ctx, pendingKey(shopperID, sessionID))
}

// ListByShopper returns the shopper's pending records, oldest first.
func (p *PendingVerifications) ListByShopper(ctx context.Context, shopperID string) ([]model.PendingVerification, error) {
	keys, err := p.store.Keys(ctx, fmt.Sprintf("pending:%s:", shopperID))
	if err != nil {
		return nil, err
	}
	recs := make([]model.PendingVerification, 0, len(keys))
	for _, k := range keys {
		data, err := p.store.Get(ctx, k)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec model.PendingVerification
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal pending verification failed: %w", err)
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, nil
}

func pendingKey(shopperID, sessionID string) string {
	return fmt.Sprintf("pending:%s:%s", shopperID, sessionID)
}

func gatewayKey(gatewayOrderID string) string {
	return "pending-gateway:" + gatewayOrderID
}
