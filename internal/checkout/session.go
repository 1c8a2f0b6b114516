package checkout

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/model"
)

// Session is one checkout attempt. Its items and totals are frozen when it
// begins; later cart changes do not reach it.
type Session struct {
	ID        string
	ShopperID string
	Mode      model.CheckoutMode
	CreatedAt time.Time

	items  []model.LineItem
	totals model.Totals
	coupon string

	submitting atomic.Bool

	mu        sync.Mutex
	step      model.CheckoutStep
	shipping  model.ShippingInfo
	method    model.PaymentMethod
	order     *model.Order
	widget    *gateway.Presentation
	pending   *model.PendingVerification
	outcome   *Outcome
	lastError string
}

// View is a point-in-time snapshot of a session for the UI.
type View struct {
	SessionID     string                     `json:"sessionId"`
	Mode          model.CheckoutMode         `json:"mode"`
	Step          model.CheckoutStep         `json:"step"`
	Items         []model.LineItem           `json:"items"`
	Totals        model.Totals               `json:"totals"`
	CouponCode    string                     `json:"couponCode,omitempty"`
	ShippingInfo  model.ShippingInfo         `json:"shippingInfo"`
	PaymentMethod model.PaymentMethod        `json:"paymentMethod"`
	Submitting    bool                       `json:"submitting"`
	Widget        *gateway.Presentation      `json:"widget,omitempty"`
	Order         *model.Order               `json:"order,omitempty"`
	Pending       *model.PendingVerification `json:"pendingVerification,omitempty"`
	Outcome       *Outcome                   `json:"outcome,omitempty"`
	LastError     string                     `json:"lastError,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:     s.ID,
		Mode:          s.Mode,
		Step:          s.step,
		Items:         model.CloneItems(s.items),
		Totals:        s.totals,
		CouponCode:    s.coupon,
		ShippingInfo:  s.shipping,
		PaymentMethod: s.method,
		Submitting:    s.submitting.Load(),
		LastError:     s.lastError,
	}
	if s.widget != nil {
		w := *s.widget
		v.Widget = &w
	}
	if s.order != nil {
		o := *s.order
		v.Order = &o
	}
	if s.pending != nil {
		p := *s.pending
		v.Pending = &p
	}
	if s.outcome != nil {
		out := *s.outcome
		v.Outcome = &out
	}
	return v
}

// Step returns the current step.
func (s *Session) Step() model.CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Submitting reports whether an order submission is in flight.
func (s *Session) Submitting() bool { return s.submitting.Load() }

// SetShippingInfo replaces the address. It is only accepted in ADDRESS.
func (s *Session) SetShippingInfo(info model.ShippingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != model.StepAddress {
		return model.NewValidationError("step", "shipping info can only be changed in the ADDRESS step")
	}
	s.shipping = info
	return nil
}

// SelectPaymentMethod is only accepted in PAYMENT_METHOD, so the method
// is fixed once the review step is reached.
func (s *Session) SelectPaymentMethod(m model.PaymentMethod) error {
	if !m.Valid() {
		return model.NewValidationError("paymentMethod", "must be COD or GATEWAY")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != model.StepPaymentMethod {
		return model.NewValidationError("step", "payment method can only be selected in the PAYMENT_METHOD step")
	}
	s.method = m
	return nil
}

// Next advances one step. Leaving ADDRESS requires every required address
// field; the error names the missing ones and the step is unchanged.
func (s *Session) Next() (model.CheckoutStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case model.StepAddress:
		if missing := s.shipping.MissingFields(); len(missing) > 0 {
			return s.step, model.NewValidationError("shippingInfo", "missing required fields: "+strings.Join(missing, ", "))
		}
		s.step = model.StepPaymentMethod
	case model.StepPaymentMethod:
		if !s.method.Valid() {
			return s.step, model.NewValidationError("paymentMethod", "select a payment method")
		}
		s.step = model.StepReview
	case model.StepReview:
		return s.step, model.NewValidationError("step", "place the order to complete checkout")
	default:
		return s.step, model.NewValidationError("step", "checkout is complete")
	}
	s.lastError = ""
	return s.step, nil
}

// Back returns to the previous step. It is refused while an order is being
// submitted and once checkout is complete.
func (s *Session) Back() (model.CheckoutStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// claim sets the guard before taking mu, so checking it under mu
	// orders Back strictly before or after a claim.
	if s.submitting.Load() {
		return s.step, ErrSubmitInProgress
	}

	switch s.step {
	case model.StepPaymentMethod:
		s.step = model.StepAddress
	case model.StepReview:
		if s.pending != nil {
			return s.step, model.NewConflictError("payment is awaiting verification")
		}
		s.step = model.StepPaymentMethod
	case model.StepComplete:
		return s.step, model.NewValidationError("step", "checkout is complete")
	}
	return s.step, nil
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.lastError = ""
		return
	}
	s.lastError = err.Error()
}
