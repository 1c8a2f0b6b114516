package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testCoupons(now time.Time) *Coupons {
	expired := now.Add(-time.Hour)
	later := now.Add(time.Hour)
	return NewCoupons([]Rule{
		{Code: "SAVE10", Kind: CouponPercent, Value: dec("10")},
		{Code: "FLAT100", Kind: CouponFixed, Value: dec("100")},
		{Code: "BIGSPEND", Kind: CouponPercent, Value: dec("20"), MinSubtotal: dec("1000")},
		{Code: "CAPPED", Kind: CouponPercent, Value: dec("50"), MaxDiscount: dec("75")},
		{Code: "OLD", Kind: CouponFixed, Value: dec("10"), ExpiresAt: &expired},
		{Code: "FRESH", Kind: CouponFixed, Value: dec("10"), ExpiresAt: &later},
	}).WithClock(func() time.Time { return now })
}

func TestApplyCoupon(t *testing.T) {
	c := testCoupons(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		code     string
		subtotal string
		want     string
	}{
		{"percent", "SAVE10", "250", "25"},
		{"case insensitive", "  save10 ", "250", "25"},
		{"fixed", "FLAT100", "250", "100"},
		{"fixed capped at subtotal", "FLAT100", "40", "40"},
		{"below minimum", "BIGSPEND", "999.99", "0"},
		{"at minimum", "BIGSPEND", "1000", "200"},
		{"max discount cap", "CAPPED", "400", "75"},
		{"expired", "OLD", "100", "0"},
		{"not yet expired", "FRESH", "100", "10"},
		{"unknown", "INVALID", "100", "0"},
		{"empty code", "", "100", "0"},
		{"empty cart", "SAVE10", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ApplyCoupon(tt.code, dec(tt.subtotal))
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ApplyCoupon(%q, %s) = %s, want %s", tt.code, tt.subtotal, got, tt.want)
			}
		})
	}
}

func TestApplyCoupon_NilTable(t *testing.T) {
	var c *Coupons
	if got := c.ApplyCoupon("SAVE10", decimal.NewFromInt(100)); !got.IsZero() {
		t.Errorf("nil table ApplyCoupon = %s, want 0", got)
	}
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"valid", `[{"code":"SAVE10","kind":"percent","value":"10"},{"code":"F","kind":"fixed","value":5}]`, 2, false},
		{"bad json", `[{`, 0, true},
		{"missing code", `[{"kind":"fixed","value":"5"}]`, 0, true},
		{"unknown kind", `[{"code":"X","kind":"bogo","value":"5"}]`, 0, true},
		{"percent over 100", `[{"code":"X","kind":"percent","value":"150"}]`, 0, true},
		{"negative fixed", `[{"code":"X","kind":"fixed","value":"-1"}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(rules) != tt.want {
				t.Errorf("len(rules) = %d, want %d", len(rules), tt.want)
			}
		})
	}
}
