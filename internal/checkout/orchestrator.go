// Package checkout drives one shopper's checkout from item selection to a
// created order: ADDRESS, PAYMENT_METHOD, REVIEW, then COMPLETE once the
// order exists.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/cartstore"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
)

// ErrSubmitInProgress is returned when an order is placed while a previous
// submission for the same session is still running.
var ErrSubmitInProgress = model.NewConflictError("order submission already in progress")

// CartSource is the part of the Cart Store a checkout needs.
type CartSource interface {
	WaitLoaded(ctx context.Context) error
	Snapshot() model.CartState
	Clear(ctx context.Context) (cartstore.Result, error)
}

// Deps wires an Orchestrator for one shopper.
type Deps struct {
	ShopperID string
	Cart      CartSource
	Products  adapter.ProductService
	Orders    adapter.OrderService
	Payments  adapter.PaymentService
	Gateway   *gateway.Adapter
	Engine    pricing.Engine
	Logger    *slog.Logger
	NewID     func() string
	Now       func() time.Time
}

// Entry says how a checkout starts. ProductID, Quantity, Size and Color
// apply to BUY_NOW only.
type Entry struct {
	Mode      model.CheckoutMode `json:"mode"`
	ProductID string             `json:"productId,omitempty"`
	Quantity  int                `json:"quantity,omitempty"`
	Size      string             `json:"size,omitempty"`
	Color     string             `json:"color,omitempty"`
}

// Outcome is the result of placing an order or retrying its verification.
type Outcome struct {
	Status  gateway.Status             `json:"status"`
	Message string                     `json:"message,omitempty"`
	Order   *model.Order               `json:"order,omitempty"`
	Pending *model.PendingVerification `json:"pendingVerification,omitempty"`
}

// Orchestrator owns at most one active checkout session for a shopper.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.With(slog.String("shopper_id", deps.ShopperID)),
	}
}

// Begin starts a session, replacing any previous one that is not
// submitting. BUY_NOW checks out a single product and never touches the
// cart; CART waits for the cart's first load and freezes its contents.
func (o *Orchestrator) Begin(ctx context.Context, e Entry) (*Session, error) {
	if !e.Mode.Valid() {
		return nil, model.NewValidationError("mode", "must be CART or BUY_NOW")
	}

	o.mu.Lock()
	if o.session != nil && o.session.Submitting() {
		o.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	o.mu.Unlock()

	var (
		items  []model.LineItem
		totals model.Totals
		coupon string
	)

	switch e.Mode {
	case model.ModeBuyNow:
		if e.ProductID == "" {
			return nil, model.NewValidationError("productId", "required for BUY_NOW")
		}
		q := e.Quantity
		if q < 1 {
			q = 1
		}
		product, err := o.deps.Products.GetProductByID(ctx, e.ProductID)
		if err != nil {
			o.logger.Warn("buy-now product lookup failed",
				slog.String("product_id", e.ProductID),
				slog.String("error", err.Error()))
			return nil, model.NewPreconditionError(fmt.Sprintf("product %s is unavailable", e.ProductID))
		}
		items = []model.LineItem{product.LineItem(q, e.Size, e.Color)}
		totals = o.deps.Engine.ComputeTotals(items, decimal.Zero)

	case model.ModeCart:
		if err := o.deps.Cart.WaitLoaded(ctx); err != nil {
			return nil, err
		}
		snap := o.deps.Cart.Snapshot()
		if snap.IsEmpty() {
			return nil, model.NewPreconditionError("cart is empty")
		}
		items = model.CloneItems(snap.Items)
		totals = snap.Totals
		coupon = snap.AppliedCoupon
		if err := o.fillDetails(ctx, items); err != nil {
			return nil, err
		}
	}

	s := &Session{
		ID:        o.deps.NewID(),
		ShopperID: o.deps.ShopperID,
		Mode:      e.Mode,
		CreatedAt: o.deps.Now(),
		items:     items,
		totals:    totals,
		coupon:    coupon,
		step:      model.StepAddress,
		method:    model.PaymentCOD,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil && o.session.Submitting() {
		return nil, ErrSubmitInProgress
	}
	o.session = s

	o.logger.Info("checkout started",
		slog.String("session_id", s.ID),
		slog.String("mode", string(s.Mode)),
		slog.Int("lines", len(items)),
		slog.String("total", model.FormatAmount(totals.Total)))
	return s, nil
}

// fillDetails looks up lines whose seller is not known yet, such as lines
// added while the cart service was unreachable. Price and quantity stay as
// the cart has them.
func (o *Orchestrator) fillDetails(ctx context.Context, items []model.LineItem) error {
	for i := range items {
		it := &items[i]
		if it.SellerID != "" {
			continue
		}
		product, err := o.deps.Products.GetProductByID(ctx, it.ProductID)
		if err != nil || product == nil || product.SellerID == "" {
			reason := "no seller"
			if err != nil {
				reason = err.Error()
			}
			o.logger.Warn("cart line detail lookup failed",
				slog.String("product_id", it.ProductID),
				slog.String("error", reason))
			return model.NewPreconditionError(fmt.Sprintf("product %s is unavailable", it.ProductID))
		}
		it.SellerID = product.SellerID
		if it.Name == "" {
			it.Name = product.Name
		}
		if it.Category == "" {
			it.Category = product.Category
		}
		if it.GSTRate.IsZero() {
			it.GSTRate = product.GSTRate
		}
		if it.MaxQuantity == 0 {
			it.MaxQuantity = product.Stock
		}
	}
	return nil
}

// Session returns the active session or a not-found error.
func (o *Orchestrator) Session() (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, model.NewNotFoundError("checkout session")
	}
	return o.session, nil
}

// Abandon drops the active session unless it is submitting.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	if o.session.Submitting() {
		return ErrSubmitInProgress
	}
	o.session = nil
	return nil
}

// PlaceOrder submits the active session's order. Only one submission runs
// at a time; a concurrent call returns ErrSubmitInProgress without any
// remote call. present, when set, receives the payment widget's
// presentation for a gateway payment.
func (o *Orchestrator) PlaceOrder(ctx context.Context, present func(gateway.Presentation)) (*Outcome, error) {
	s, err := o.Session()
	if err != nil {
		return nil, err
	}
	return o.place(ctx, s, present)
}

// PlaceOrderAsync claims the submission and checks the step before
// returning, then runs the submission through spawn. The result is visible
// in the session view.
func (o *Orchestrator) PlaceOrderAsync(ctx context.Context, present func(gateway.Presentation), spawn func(func())) (*Session, error) {
	s, err := o.Session()
	if err != nil {
		return nil, err
	}
	sub, err := o.claim(s)
	if err != nil {
		return nil, err
	}
	spawn(func() {
		defer s.submitting.Store(false)
		if _, err := o.submit(ctx, s, sub, present); err != nil {
			o.logger.Debug("background order submission ended with error",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()))
		}
	})
	return s, nil
}

func (o *Orchestrator) place(ctx context.Context, s *Session, present func(gateway.Presentation)) (*Outcome, error) {
	sub, err := o.claim(s)
	if err != nil {
		return nil, err
	}
	defer s.submitting.Store(false)
	return o.submit(ctx, s, sub, present)
}

// submission is what an order is placed with, read once when the guard is
// claimed.
type submission struct {
	method   model.PaymentMethod
	shipping model.ShippingInfo
}

// claim sets the submission guard and snapshots the session's choices
// under the same lock Back and SelectPaymentMethod take. On error the
// guard is left unset.
func (o *Orchestrator) claim(s *Session) (submission, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return submission{}, ErrSubmitInProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.step != model.StepReview:
		s.submitting.Store(false)
		return submission{}, model.NewValidationError("step", "orders can only be placed from the REVIEW step")
	case s.pending != nil:
		s.submitting.Store(false)
		return submission{}, model.NewConflictError("payment is awaiting verification; retry verification instead")
	}
	s.outcome = nil
	return submission{method: s.method, shipping: s.shipping}, nil
}

func (o *Orchestrator) submit(ctx context.Context, s *Session, sub submission, present func(gateway.Presentation)) (*Outcome, error) {
	method, shipping := sub.method, sub.shipping

	payload, err := BuildOrderPayload(s.items, shipping, method, s.totals, s.coupon)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	log := o.logger.With(slog.String("session_id", s.ID), slog.String("payment_method", string(method)))

	var out *Outcome
	switch method {
	case model.PaymentCOD:
		out, err = o.submitCOD(ctx, s, payload)
	default:
		out, err = o.submitGateway(ctx, s, payload, present)
	}
	if err != nil {
		log.Warn("order submission failed", slog.String("error", err.Error()))
		s.setError(err)
		return nil, err
	}

	switch out.Status {
	case gateway.StatusCompleted:
		s.mu.Lock()
		s.outcome = out
		s.mu.Unlock()
		o.complete(ctx, s, out.Order)
		log.Info("order placed", slog.String("order_id", out.Order.ID))
	case gateway.StatusDismissed:
		s.mu.Lock()
		s.outcome = out
		s.mu.Unlock()
		s.setError(errors.New(gateway.DismissedMessage))
	case gateway.StatusPendingVerification, gateway.StatusAwaitingCallback:
		s.mu.Lock()
		// A late callback may already have settled the payment.
		if s.outcome == nil && s.step != model.StepComplete {
			s.outcome = out
			s.pending = out.Pending
			s.lastError = pendingMessage(out.Status)
		}
		s.mu.Unlock()
	}
	return out, nil
}

func pendingMessage(st gateway.Status) string {
	if st == gateway.StatusAwaitingCallback {
		return "waiting for the payment gateway to confirm the payment"
	}
	return "payment received; order confirmation pending"
}

func (o *Orchestrator) submitCOD(ctx context.Context, s *Session, payload *model.OrderPayload) (*Outcome, error) {
	octx := adapter.WithIdempotencyKey(ctx, s.ID+":order")
	order, err := o.deps.Orders.CreateOrder(octx, payload)
	if err != nil {
		return nil, err
	}
	if order == nil || order.ID == "" {
		return nil, model.NewRejectedError("order service", "order creation failed")
	}
	return &Outcome{Status: gateway.StatusCompleted, Order: order}, nil
}

func (o *Orchestrator) submitGateway(ctx context.Context, s *Session, payload *model.OrderPayload, present func(gateway.Presentation)) (*Outcome, error) {
	if o.deps.Gateway == nil {
		return nil, model.NewPaymentError("online payment is not available")
	}

	ictx := adapter.WithIdempotencyKey(ctx, s.ID+":intent")
	intent, err := o.deps.Payments.CreateOrderForPayment(ictx, &model.CreatePaymentRequest{
		Amount:    payload.Total,
		OrderData: *payload,
	})
	if err != nil {
		return nil, err
	}
	if intent.Prefill == (model.GatewayPrefill{}) {
		intent.Prefill = model.GatewayPrefill{
			Name:  payload.ShippingInfo.FullName(),
			Email: payload.ShippingInfo.Email,
			Phone: payload.ShippingInfo.Phone,
		}
	}

	p, err := o.deps.Gateway.Pay(ctx, gateway.PayRequest{
		SessionID: s.ID,
		ShopperID: s.ShopperID,
		Mode:      s.Mode,
		Intent:    *intent,
		Present: func(pr gateway.Presentation) {
			s.mu.Lock()
			s.widget = &pr
			s.mu.Unlock()
			if present != nil {
				present(pr)
			}
		},
	})

	s.mu.Lock()
	s.widget = nil
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := &Outcome{Status: p.Status, Order: p.Order, Pending: p.Pending}
	if p.Status == gateway.StatusDismissed {
		out.Message = gateway.DismissedMessage
	}
	return out, nil
}

// RetryVerification resends a pending gateway verification. An empty
// sessionID means the active session. Sessions lost to a restart can
// still be retried by id.
func (o *Orchestrator) RetryVerification(ctx context.Context, sessionID string) (*Outcome, error) {
	if o.deps.Gateway == nil {
		return nil, model.NewNotFoundError("pending verification")
	}

	o.mu.Lock()
	active := o.session
	o.mu.Unlock()

	if sessionID == "" {
		if active == nil {
			return nil, model.NewNotFoundError("checkout session")
		}
		sessionID = active.ID
	}
	if active != nil && active.ID != sessionID {
		active = nil
	}

	mode := model.ModeCart
	if active != nil {
		mode = active.Mode
		if !active.submitting.CompareAndSwap(false, true) {
			return nil, ErrSubmitInProgress
		}
		defer active.submitting.Store(false)
	} else {
		recs, err := o.deps.Gateway.PendingFor(ctx, o.deps.ShopperID)
		if err != nil {
			return nil, model.NewInternalError(err)
		}
		for _, r := range recs {
			if r.SessionID == sessionID {
				mode = r.Mode
			}
		}
	}

	p, err := o.deps.Gateway.Retry(ctx, o.deps.ShopperID, sessionID)
	if err != nil {
		if active != nil {
			active.setError(err)
		}
		return nil, err
	}
	return o.apply(ctx, sessionID, mode, p), nil
}

// SettleCallback applies a gateway result that no waiting submission
// claimed, for example one delivered after the submission timed out or
// after a restart. The payment is located by its gateway order id.
func (o *Orchestrator) SettleCallback(ctx context.Context, gatewayOrderID string, res gateway.WidgetResult) (*Outcome, error) {
	if o.deps.Gateway == nil {
		return nil, model.NewNotFoundError("payment")
	}
	rec, err := o.deps.Gateway.PendingByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if rec.ShopperID != o.deps.ShopperID {
		return nil, model.NewNotFoundError("payment")
	}
	p, err := o.deps.Gateway.Settle(ctx, gatewayOrderID, res)
	if err != nil {
		return nil, err
	}
	return o.apply(ctx, rec.SessionID, rec.Mode, p), nil
}

// apply records a payment outcome on the session it belongs to, if that
// session is still active, and clears the cart of completed cart checkouts.
func (o *Orchestrator) apply(ctx context.Context, sessionID string, mode model.CheckoutMode, p *gateway.Payment) *Outcome {
	out := &Outcome{Status: p.Status, Order: p.Order, Pending: p.Pending}
	if p.Status == gateway.StatusDismissed {
		out.Message = gateway.DismissedMessage
	}

	o.mu.Lock()
	active := o.session
	o.mu.Unlock()
	if active != nil && active.ID != sessionID {
		active = nil
	}

	if active != nil {
		active.mu.Lock()
		active.outcome = out
		switch p.Status {
		case gateway.StatusPendingVerification, gateway.StatusAwaitingCallback:
			active.pending = p.Pending
			active.lastError = pendingMessage(p.Status)
		case gateway.StatusDismissed:
			active.pending = nil
			active.lastError = gateway.DismissedMessage
		}
		active.mu.Unlock()
	}

	if p.Status == gateway.StatusCompleted {
		switch {
		case active != nil:
			o.complete(ctx, active, p.Order)
		case mode == model.ModeCart:
			o.clearCart(ctx, sessionID)
		}
	}
	return out
}

// complete records the order and, for cart checkouts only, empties the cart.
func (o *Orchestrator) complete(ctx context.Context, s *Session, order *model.Order) {
	s.mu.Lock()
	s.order = order
	s.step = model.StepComplete
	s.pending = nil
	s.lastError = ""
	s.mu.Unlock()

	if s.Mode == model.ModeCart {
		o.clearCart(ctx, s.ID)
	}
}

func (o *Orchestrator) clearCart(ctx context.Context, sessionID string) {
	if o.deps.Cart == nil {
		return
	}
	if _, err := o.deps.Cart.Clear(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn("failed to clear cart after order",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}
