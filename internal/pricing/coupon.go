package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CouponKind selects how a rule's Value is interpreted.
type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

// Rule is one entry in the coupon table.
type Rule struct {
	Code        string          `json:"code"`
	Kind        CouponKind      `json:"kind"`
	Value       decimal.Decimal `json:"value"`       // percent (0-100) or fixed amount
	MinSubtotal decimal.Decimal `json:"minSubtotal"` // zero means no minimum
	MaxDiscount decimal.Decimal `json:"maxDiscount"` // zero means uncapped
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}

// Coupons resolves codes against a rule table. Codes match case-insensitively.
type Coupons struct {
	rules map[string]Rule
	now   func() time.Time
}

// NewCoupons builds a table from rules. Later duplicates win.
func NewCoupons(rules []Rule) *Coupons {
	c := &Coupons{rules: make(map[string]Rule, len(rules)), now: time.Now}
	for _, r := range rules {
		c.rules[normalize(r.Code)] = r
	}
	return c
}

// WithClock replaces the clock used for expiry checks.
func (c *Coupons) WithClock(now func() time.Time) *Coupons {
	c.now = now
	return c
}

// ApplyCoupon returns the discount code earns on subtotal. Unknown, expired,
// or below-minimum codes return zero rather than an error so checkout never
// blocks on a bad code. The result never exceeds subtotal.
func (c *Coupons) ApplyCoupon(code string, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	r, ok := c.rules[normalize(code)]
	if !ok {
		return decimal.Zero
	}
	if r.ExpiresAt != nil && !c.now().Before(*r.ExpiresAt) {
		return decimal.Zero
	}
	if subtotal.LessThan(r.MinSubtotal) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch r.Kind {
	case CouponPercent:
		discount = subtotal.Mul(r.Value).Div(decimal.NewFromInt(100))
	case CouponFixed:
		discount = r.Value
	default:
		return decimal.Zero
	}

	if r.MaxDiscount.IsPositive() && discount.GreaterThan(r.MaxDiscount) {
		discount = r.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Len reports how many codes are configured.
func (c *Coupons) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// ParseRules decodes a JSON array of rules and checks each one.
func ParseRules(data []byte) ([]Rule, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing coupon rules: %w", err)
	}
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("coupon rule %d: %w", i, err)
		}
	}
	return rules, nil
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("code is required")
	}
	switch r.Kind {
	case CouponPercent:
		if r.Value.IsNegative() || r.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s: percent must be between 0 and 100", r.Code)
		}
	case CouponFixed:
		if r.Value.IsNegative() {
			return fmt.Errorf("%s: fixed amount must not be negative", r.Code)
		}
	default:
		return fmt.Errorf("%s: unknown kind %q", r.Code, r.Kind)
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
