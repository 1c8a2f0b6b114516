package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"storefront-checkout/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(id string, price string, qty int) model.LineItem {
	return model.LineItem{ProductID: id, UnitPrice: dec(price), Quantity: qty}
}

func TestComputeTotals(t *testing.T) {
	e := Default()

	tests := []struct {
		name     string
		items    []model.LineItem
		discount string
		want     model.Totals
	}{
		{
			name:  "empty cart still charges flat shipping",
			items: nil,
			want:  model.Totals{Subtotal: dec("0"), Discount: dec("0"), Shipping: dec("50"), Tax: dec("0"), Total: dec("50")},
		},
		{
			name:  "below threshold",
			items: []model.LineItem{item("A", "100", 2)},
			want:  model.Totals{Subtotal: dec("200"), Discount: dec("0"), Shipping: dec("50"), Tax: dec("10"), Total: dec("260")},
		},
		{
			name:  "exactly at threshold pays shipping",
			items: []model.LineItem{item("A", "250", 2)},
			want:  model.Totals{Subtotal: dec("500"), Discount: dec("0"), Shipping: dec("50"), Tax: dec("25"), Total: dec("575")},
		},
		{
			name:  "above threshold ships free",
			items: []model.LineItem{item("A", "250.01", 2)},
			want:  model.Totals{Subtotal: dec("500.02"), Discount: dec("0"), Shipping: dec("0"), Tax: dec("25.001"), Total: dec("525.021")},
		},
		{
			name:     "discount subtracted",
			items:    []model.LineItem{item("A", "300", 1), item("B", "300", 1)},
			discount: "60",
			want:     model.Totals{Subtotal: dec("600"), Discount: dec("60"), Shipping: dec("0"), Tax: dec("30"), Total: dec("570")},
		},
		{
			name:     "discount clamped to subtotal",
			items:    []model.LineItem{item("A", "20", 1)},
			discount: "75",
			want:     model.Totals{Subtotal: dec("20"), Discount: dec("20"), Shipping: dec("50"), Tax: dec("1"), Total: dec("51")},
		},
		{
			name:     "negative discount ignored",
			items:    []model.LineItem{item("A", "20", 1)},
			discount: "-5",
			want:     model.Totals{Subtotal: dec("20"), Discount: dec("0"), Shipping: dec("50"), Tax: dec("1"), Total: dec("71")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount := decimal.Zero
			if tt.discount != "" {
				discount = dec(tt.discount)
			}
			got := e.ComputeTotals(tt.items, discount)
			assertTotals(t, got, tt.want)
		})
	}
}

func TestComputeTotals_Deterministic(t *testing.T) {
	e := Default()
	items := []model.LineItem{item("A", "19.99", 3), item("B", "0.105", 7), item("C", "480", 1)}
	first := e.ComputeTotals(items, dec("12.5"))
	for i := 0; i < 100; i++ {
		assertTotals(t, e.ComputeTotals(items, dec("12.5")), first)
	}
}

func TestComputeTotals_ShippingThreshold(t *testing.T) {
	e := Default()
	for _, sub := range []string{"0.01", "1", "250", "499.99", "500"} {
		got := e.ComputeTotals([]model.LineItem{item("A", sub, 1)}, decimal.Zero)
		if !got.Shipping.Equal(dec("50")) {
			t.Errorf("subtotal %s: shipping = %s, want 50", sub, got.Shipping)
		}
	}
	for _, sub := range []string{"500.001", "500.01", "501", "10000"} {
		got := e.ComputeTotals([]model.LineItem{item("A", sub, 1)}, decimal.Zero)
		if !got.Shipping.IsZero() {
			t.Errorf("subtotal %s: shipping = %s, want 0", sub, got.Shipping)
		}
	}
}

func TestComputeTotals_TotalIdentity(t *testing.T) {
	e := Default()
	items := []model.LineItem{item("A", "33.33", 3), item("B", "0.07", 11)}
	got := e.ComputeTotals(items, dec("7.77"))
	want := got.Subtotal.Sub(got.Discount).Add(got.Shipping).Add(got.Tax)
	if !got.Total.Equal(want) {
		t.Errorf("Total = %s, want subtotal-discount+shipping+tax = %s", got.Total, want)
	}
}

func assertTotals(t *testing.T, got, want model.Totals) {
	t.Helper()
	fields := []struct {
		name      string
		got, want decimal.Decimal
	}{
		{"Subtotal", got.Subtotal, want.Subtotal},
		{"Discount", got.Discount, want.Discount},
		{"Shipping", got.Shipping, want.Shipping},
		{"Tax", got.Tax, want.Tax},
		{"Total", got.Total, want.Total},
	}
	for _, f := range fields {
		if !f.got.Equal(f.want) {
			t.Errorf("%s = %s, want %s", f.name, f.got, f.want)
		}
	}
}
