package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/persist"
)

// Status is the result of one payment attempt.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusDismissed           Status = "dismissed"
	StatusPendingVerification Status = "pending_verification"
	// StatusAwaitingCallback means the widget wait ended before the gateway
	// answered. The payment record stays so a late callback can settle it.
	StatusAwaitingCallback Status = "awaiting_callback"
)

// DismissedMessage is shown when the shopper closes the widget.
const DismissedMessage = "payment window closed"

// Config configures an Adapter.
type Config struct {
	Widget   Widget
	Payments adapter.PaymentService
	// Pending stores every gateway payment from the moment its widget
	// opens until it is verified or dismissed. When nil, an in-memory
	// store is used and records do not survive a restart.
	Pending *persist.PendingVerifications
	Logger  *slog.Logger

	// MaxAttempts bounds verification calls per payment. Default 3.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it grows linearly.
	Backoff time.Duration
	Now     func() time.Time
}

// Adapter runs gateway payments: widget session, then server verification.
type Adapter struct {
	loader      *Loader
	payments    adapter.PaymentService
	pending     *persist.PendingVerifications
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewAdapter(cfg Config) *Adapter {
	a := &Adapter{
		loader:      NewLoader(cfg.Widget),
		payments:    cfg.Payments,
		pending:     cfg.Pending,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		now:         cfg.Now,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = 3
	}
	if a.backoff < 0 {
		a.backoff = 0
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.pending == nil {
		a.pending = persist.NewPendingVerifications(persist.NewMemoryStore())
	}
	return a
}

// Loader exposes the widget loader.
func (a *Adapter) Loader() *Loader { return a.loader }

// PayRequest is one gateway payment for a checkout session.
type PayRequest struct {
	SessionID string
	ShopperID string
	Mode      model.CheckoutMode
	Intent    model.GatewayOrderIntent
	Present   func(Presentation)
}

// Payment is the outcome of Pay, Settle or Retry. Order is set only when
// Status is StatusCompleted; Pending only when it is
// StatusPendingVerification or StatusAwaitingCallback.
type Payment struct {
	Status  Status
	Order   *model.Order
	Result  model.GatewayResult
	Pending *model.PendingVerification
}

// Pay opens the widget for intent and verifies a successful payment with
// the payment service. An intent missing its gateway order id or original
// order data is rejected before anything is loaded.
func (a *Adapter) Pay(ctx context.Context, req PayRequest) (*Payment, error) {
	if err := req.Intent.Validate(); err != nil {
		return nil, err
	}

	widget, err := a.loader.Ensure(ctx)
	if err != nil {
		a.logger.Error("payment widget failed to load",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		return nil, model.NewPaymentError("payment widget unavailable")
	}

	now := a.now()
	rec := model.PendingVerification{
		SessionID: req.SessionID,
		ShopperID: req.ShopperID,
		Mode:      req.Mode,
		Request: model.VerifyPaymentRequest{
			GatewayResult: model.GatewayResult{GatewayOrderID: req.Intent.GatewayOrderID},
			OrderData:     req.Intent.OriginalOrderData,
		},
		AwaitingCallback: true,
		CallbackToken:    uuid.NewString(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.pending.Save(ctx, rec); err != nil {
		a.logger.Error("failed to record payment before opening widget",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		return nil, model.NewPaymentError("payment could not be started")
	}

	res, err := widget.Open(ctx, Checkout{
		SessionID:     req.SessionID,
		Intent:        req.Intent,
		Present:       req.Present,
		CallbackToken: rec.CallbackToken,
	})
	if err != nil {
		if ctx.Err() != nil {
			// The shopper may still complete the payment; keep the record.
			a.logger.Warn("payment widget wait ended before the gateway answered",
				slog.String("session_id", req.SessionID),
				slog.String("gateway_order_id", req.Intent.GatewayOrderID))
			rec.LastError = "payment confirmation not yet received from the gateway"
			return &Payment{Status: StatusAwaitingCallback, Pending: &rec}, nil
		}
		a.clearPending(ctx, rec)
		if errors.Is(err, model.ErrPrecondition) {
			return nil, err
		}
		a.logger.Error("payment widget failed",
			slog.String("provider", widget.Name()),
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		return nil, model.NewPaymentError("payment could not be started")
	}

	return a.conclude(ctx, rec, res)
}

// conclude applies a widget result to an awaiting record.
func (a *Adapter) conclude(ctx context.Context, rec model.PendingVerification, res WidgetResult) (*Payment, error) {
	if res.Outcome != OutcomeSuccess {
		a.logger.Info("payment dismissed",
			slog.String("session_id", rec.SessionID),
			slog.String("gateway_order_id", rec.Request.GatewayOrderID))
		a.clearPending(ctx, rec)
		return &Payment{Status: StatusDismissed}, nil
	}

	id := rec.Request.GatewayOrderID
	rec.Request.GatewayResult = res.Result
	if rec.Request.GatewayOrderID == "" {
		rec.Request.GatewayOrderID = id
	}
	rec.AwaitingCallback = false
	return a.verify(ctx, rec)
}

// Settle applies a gateway result that arrived when no widget session was
// waiting for it: after the submission's deadline, or after a restart.
// The payment is verified exactly as Pay would have. A result for a
// payment that already left the awaiting state is ignored and the record
// is returned as is.
func (a *Adapter) Settle(ctx context.Context, gatewayOrderID string, res WidgetResult) (*Payment, error) {
	rec, err := a.PendingByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if !rec.AwaitingCallback {
		return &Payment{Status: StatusPendingVerification, Result: rec.Request.GatewayResult, Pending: &rec}, nil
	}
	a.logger.Info("settling late gateway callback",
		slog.String("session_id", rec.SessionID),
		slog.String("gateway_order_id", gatewayOrderID),
		slog.String("outcome", string(res.Outcome)))
	return a.conclude(ctx, rec, res)
}

// PendingByGatewayOrder finds the payment record for a gateway order id.
func (a *Adapter) PendingByGatewayOrder(ctx context.Context, gatewayOrderID string) (model.PendingVerification, error) {
	rec, err := a.pending.LoadByGatewayOrder(ctx, gatewayOrderID)
	if errors.Is(err, persist.ErrMiss) {
		return model.PendingVerification{}, model.NewNotFoundError("payment")
	}
	if err != nil {
		return model.PendingVerification{}, model.NewInternalError(err)
	}
	return rec, nil
}

// Retry resends a stored pending verification exactly as it was first
// sent. A payment still waiting for the gateway's answer cannot be
// retried.
func (a *Adapter) Retry(ctx context.Context, shopperID, sessionID string) (*Payment, error) {
	rec, err := a.pending.Load(ctx, shopperID, sessionID)
	if errors.Is(err, persist.ErrMiss) {
		return nil, model.NewNotFoundError("pending verification")
	}
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if rec.AwaitingCallback {
		return nil, model.NewPreconditionError("payment confirmation has not been received from the gateway yet")
	}
	return a.verify(ctx, rec)
}

// PendingFor lists the shopper's unfinished gateway payments.
func (a *Adapter) PendingFor(ctx context.Context, shopperID string) ([]model.PendingVerification, error) {
	return a.pending.ListByShopper(ctx, shopperID)
}

func (a *Adapter) verify(ctx context.Context, rec model.PendingVerification) (*Payment, error) {
	vctx := adapter.WithIdempotencyKey(ctx, rec.SessionID+":verify")

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*a.backoff); err != nil {
				break
			}
		}
		rec.Attempts++

		req := rec.Request
		order, err := a.payments.VerifyPayment(vctx, &req)
		if err == nil {
			a.clearPending(ctx, rec)
			a.logger.Info("payment verified",
				slog.String("session_id", rec.SessionID),
				slog.String("order_id", order.ID),
				slog.Int("attempts", rec.Attempts))
			return &Payment{Status: StatusCompleted, Order: order, Result: rec.Request.GatewayResult}, nil
		}

		lastErr = err
		if errors.Is(err, model.ErrUnauthorized) {
			// No usable shopper credentials, typically a gateway callback.
			// Keep the record for the shopper to retry.
			break
		}
		if !model.IsTransient(err) {
			a.logger.Warn("payment verification rejected",
				slog.String("session_id", rec.SessionID),
				slog.String("error", err.Error()))
			a.clearPending(ctx, rec)
			return nil, err
		}
		a.logger.Warn("payment verification failed, will retry",
			slog.String("session_id", rec.SessionID),
			slog.Int("attempt", rec.Attempts),
			slog.String("error", err.Error()))
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	rec.LastError = lastErr.Error()
	rec.UpdatedAt = a.now()

	if err := a.pending.Save(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Error("failed to persist pending verification",
			slog.String("session_id", rec.SessionID),
			slog.String("error", err.Error()))
	}
	a.logger.Warn("payment awaiting verification",
		slog.String("session_id", rec.SessionID),
		slog.String("gateway_order_id", rec.Request.GatewayOrderID))

	return &Payment{Status: StatusPendingVerification, Result: rec.Request.GatewayResult, Pending: &rec}, nil
}

func (a *Adapter) clearPending(ctx context.Context, rec model.PendingVerification) {
	if err := a.pending.Delete(context.WithoutCancel(ctx), rec.ShopperID, rec.SessionID); err != nil {
		a.logger.Warn("failed to delete pending verification",
			slog.String("session_id", rec.SessionID),
			slog.String("error", err.Error()))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("verification backoff: %w", ctx.Err())
	}
}
