// Package model defines the cart, checkout, and order types shared by the
// storefront pipeline, plus money helpers and the API error taxonomy.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineKey identifies a cart line. The same product in a different size or
// color is a different line.
type LineKey struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// LineItem is one product quantity in a cart or buy-now selection.
// SellerID, Category and GSTRate may be empty until product detail is known.
type LineItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name,omitempty"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	MaxQuantity int             `json:"maxQuantity,omitempty"` // 0 = ceiling unknown
	SellerID    string          `json:"sellerId,omitempty"`
	Category    string          `json:"category,omitempty"`
	GSTRate     decimal.Decimal `json:"gstRate"`
}

func (li LineItem) Key() LineKey {
	return LineKey{ProductID: li.ProductID, Size: li.Size, Color: li.Color}
}

// Subtotal returns unitPrice × quantity, unrounded.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ClampQuantity forces q into [1, max]. A max of 0 means the ceiling is
// unknown and only the lower bound applies.
func ClampQuantity(q, max int) int {
	if max > 0 && q > max {
		q = max
	}
	if q < 1 {
		q = 1
	}
	return q
}

// CloneItems returns a copy that shares no backing array with items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// CountItems returns Σ quantity.
func CountItems(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Totals are the derived amounts of an item list. Values are kept unrounded;
// see Round for render-time rounding.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// CartState is the full derived cart, recomputed on every mutation.
type CartState struct {
	Items []LineItem `json:"items"`
	Totals
	ItemCount     int       `json:"itemCount"`
	AppliedCoupon string    `json:"appliedCoupon,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s CartState) Clone() CartState {
	s.Items = CloneItems(s.Items)
	return s
}

func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// Product is the product-service view of a catalog entry, as much of it as
// checkout needs.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	SellerID string          `json:"sellerId"`
	Category string          `json:"category,omitempty"`
	GSTRate  decimal.Decimal `json:"gstRate"`
}

// LineItem builds a line for quantity q of p, clamped to available stock.
func (p Product) LineItem(q int, size, color string) LineItem {
	return LineItem{
		ProductID:   p.ID,
		Name:        p.Name,
		Size:        size,
		Color:       color,
		Quantity:    ClampQuantity(q, p.Stock),
		UnitPrice:   p.Price,
		MaxQuantity: p.Stock,
		SellerID:    p.SellerID,
		Category:    p.Category,
		GSTRate:     p.GSTRate,
	}
}
