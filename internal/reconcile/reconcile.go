// Package reconcile holds the item-list arithmetic behind the cart's
// offline path: applying a mutation to the last-known list when the remote
// cart is unreachable, and diffing a local list against the server's answer.
//
// Lines are matched by model.LineKey (productId, size, color), never by
// position or by any backend line id.
package reconcile

import "storefront-checkout/internal/model"

// LineItemDiff describes how a server list differs from a local one.
type LineItemDiff struct {
	Added   []model.LineItem // On the server but not local
	Removed []model.LineItem // Local but not on the server
	Changed []QuantityChange // On both with different quantities
}

// QuantityChange records one line whose quantity differs.
type QuantityChange struct {
	Key    model.LineKey
	Local  int
	Remote int
}

// IsEmpty returns true if both lists hold the same lines and quantities.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff computes what the server list changed relative to local. Output
// order follows the input slices so logs stay stable.
func Diff(local, server []model.LineItem) *LineItemDiff {
	diff := &LineItemDiff{}

	localByKey := make(map[model.LineKey]model.LineItem, len(local))
	for _, it := range local {
		localByKey[it.Key()] = it
	}
	serverByKey := make(map[model.LineKey]model.LineItem, len(server))
	for _, it := range server {
		serverByKey[it.Key()] = it
	}

	for _, s := range server {
		l, ok := localByKey[s.Key()]
		if !ok {
			diff.Added = append(diff.Added, s)
			continue
		}
		if l.Quantity != s.Quantity {
			diff.Changed = append(diff.Changed, QuantityChange{Key: s.Key(), Local: l.Quantity, Remote: s.Quantity})
		}
	}
	for _, l := range local {
		if _, ok := serverByKey[l.Key()]; !ok {
			diff.Removed = append(diff.Removed, l)
		}
	}

	return diff
}

// Add merges add into items. An existing line with the same key has its
// quantity increased; otherwise add is appended. Quantities clamp to the
// known ceiling. The input slice is not modified.
func Add(items []model.LineItem, add model.LineItem) []model.LineItem {
	out := model.CloneItems(items)
	for i := range out {
		if out[i].Key() != add.Key() {
			continue
		}
		if add.MaxQuantity > 0 {
			out[i].MaxQuantity = add.MaxQuantity
		}
		out[i].Quantity = model.ClampQuantity(out[i].Quantity+add.Quantity, out[i].MaxQuantity)
		return out
	}
	add.Quantity = model.ClampQuantity(add.Quantity, add.MaxQuantity)
	return append(out, add)
}

// Remove drops the line with key. Removing an absent key returns an
// unchanged copy.
func Remove(items []model.LineItem, key model.LineKey) []model.LineItem {
	out := make([]model.LineItem, 0, len(items))
	for _, it := range items {
		if it.Key() != key {
			out = append(out, it)
		}
	}
	return out
}

// SetQuantity sets the quantity of the line with key. A quantity of zero or
// less removes the line; larger values clamp to the line's ceiling.
func SetQuantity(items []model.LineItem, key model.LineKey, q int) []model.LineItem {
	if q <= 0 {
		return Remove(items, key)
	}
	out := model.CloneItems(items)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity = model.ClampQuantity(q, out[i].MaxQuantity)
		}
	}
	return out
}

// Find returns the line with key, if present.
func Find(items []model.LineItem, key model.LineKey) (model.LineItem, bool) {
	for _, it := range items {
		if it.Key() == key {
			return it, true
		}
	}
	return model.LineItem{}, false
}

// FillDetails copies product detail the server omitted (ceiling, seller,
// category, GST) from known lines onto server lines with the same key.
// Server quantities and prices are kept.
func FillDetails(server, known []model.LineItem) []model.LineItem {
	out := model.CloneItems(server)
	for i := range out {
		k, ok := Find(known, out[i].Key())
		if !ok {
			continue
		}
		if out[i].MaxQuantity == 0 {
			out[i].MaxQuantity = k.MaxQuantity
		}
		if out[i].SellerID == "" {
			out[i].SellerID = k.SellerID
		}
		if out[i].Category == "" {
			out[i].Category = k.Category
		}
		if out[i].GSTRate.IsZero() {
			out[i].GSTRate = k.GSTRate
		}
		if out[i].Name == "" {
			out[i].Name = k.Name
		}
	}
	return out
}
