package handler

import (
	"context"
	"log/slog"
	"net/http"

	"storefront-checkout/internal/checkout"
	"storefront-checkout/internal/model"
)

type stepResponse struct {
	Step     model.CheckoutStep `json:"step"`
	Checkout checkout.View      `json:"checkout"`
}

type paymentMethodRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

type retryRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// handleBeginCheckout starts a checkout session from the cart or a single
// product.
// POST /api/v1/checkout
func (h *Handler) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var entry checkout.Entry
	if err := decodeJSON(r, &entry); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "beginning checkout",
		slog.String("shopper_id", s.ID),
		slog.String("mode", string(entry.Mode)),
		slog.String("product_id", entry.ProductID),
	)

	sess, err := s.Checkout.Begin(ctx, entry)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sess.View())
}

// handleGetCheckout returns the active session.
// GET /api/v1/checkout
func (h *Handler) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.activeSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// handleAbandonCheckout drops the active session.
// DELETE /api/v1/checkout
func (h *Handler) handleAbandonCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.shopper(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := s.Checkout.Abandon(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetShipping replaces the shipping address.
// PUT /api/v1/checkout/shipping
func (h *Handler) handleSetShipping(w http.ResponseWriter, r *http.Request) {
	sess, err := h.activeSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var info model.ShippingInfo
	if err := decodeJSON(r, &info); err != nil {
		h.writeError(w, err)
		return
	}
	if err := sess.SetShippingInfo(info); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// handleNext advances the step machine.
// POST /api/v1/checkout/next
func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, err := h.activeSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	step, err := sess.Next()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stepResponse{Step: step, Checkout: sess.View()})
}

// handleBack returns to the previous step.
// POST /api/v1/checkout/back
func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, err := h.activeSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	step, err := sess.Back()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stepResponse{Step: step, Checkout: sess.View()})
}

// handleSelectPaymentMethod picks COD or GATEWAY.
// PUT /api/v1/checkout/payment-method
func (h *Handler) handleSelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, err := h.activeSession(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req paymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := sess.SelectPaymentMethod(req.PaymentMethod); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// handlePlaceOrder starts order submission and answers immediately. The
// client polls GET /api/v1/checkout; for gateway payments the view carries
// the widget to show. A second call while submitting gets 409.
// POST /api/v1/checkout/place-order
func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.PlaceTimeout)
	sess, err := s.Checkout.PlaceOrderAsync(bg, nil, func(fn func()) {
		h.registry.Go(func() {
			defer cancel()
			fn()
		})
	})
	if err != nil {
		cancel()
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "order submission started",
		slog.String("shopper_id", s.ID),
		slog.String("session_id", sess.ID),
	)
	h.writeJSON(w, http.StatusAccepted, sess.View())
}

// handleRetryVerification resends a pending payment verification.
// POST /api/v1/checkout/verification/retry
func (h *Handler) handleRetryVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req retryRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	out, err := s.Checkout.RetryVerification(ctx, req.SessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) activeSession(ctx context.Context) (*checkout.Session, error) {
	s, err := h.shopper(ctx)
	if err != nil {
		return nil, err
	}
	return s.Checkout.Session()
}
