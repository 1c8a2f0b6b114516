// Package pricing computes cart totals and resolves coupon discounts.
// Everything here is pure: no I/O, no clocks except the injectable one on
// Coupons, and safe to call on every mutation.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-checkout/internal/model"
)

// Engine holds the storefront's fixed pricing rules.
type Engine struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal // shipping is free strictly above this subtotal
	FlatShipping          decimal.Decimal
}

// Default returns the storefront's standard rules: 5% tax, free shipping
// above 500, otherwise a flat 50.
func Default() Engine {
	return Engine{
		TaxRate:               decimal.RequireFromString("0.05"),
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShipping:          decimal.NewFromInt(50),
	}
}

// ComputeTotals derives all amounts for items with the given coupon discount.
// The discount is clamped to [0, subtotal]. Nothing is rounded.
func (e Engine) ComputeTotals(items []model.LineItem, couponDiscount decimal.Decimal) model.Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}

	discount := couponDiscount
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	shipping := e.FlatShipping
	if subtotal.GreaterThan(e.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(e.TaxRate)

	return model.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(shipping).Add(tax),
	}
}
