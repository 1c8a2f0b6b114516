package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/model"
)

// paymentCallback accepts both a Snap notification and the result a
// browser-hosted widget posts back.
type paymentCallback struct {
	gateway.SnapNotification

	Outcome          gateway.Outcome `json:"outcome"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID string          `json:"gatewayPaymentId"`
	GatewaySignature string          `json:"gatewaySignature"`
	CallbackToken    string          `json:"callbackToken"`
}

type callbackResponse struct {
	Delivered bool           `json:"delivered"`
	Settled   bool           `json:"settled,omitempty"`
	Status    gateway.Status `json:"status,omitempty"`
	Ignored   bool           `json:"ignored,omitempty"`
}

// handlePaymentCallback routes a gateway's answer to the checkout waiting
// on it. When no submission is waiting any more, the answer settles the
// persisted payment directly.
// POST /api/v1/payments/callback
func (h *Handler) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gw := h.registry.Gateway()
	if h.hub == nil || gw == nil {
		h.writeError(w, model.NewNotFoundError("payment gateway"))
		return
	}

	var cb paymentCallback
	if err := decodeJSON(r, &cb); err != nil {
		h.writeError(w, err)
		return
	}

	var (
		id     string
		res    gateway.WidgetResult
		signed bool
	)
	if cb.TransactionStatus != "" {
		if h.opts.Notifications == nil || !h.opts.Notifications.Authentic(cb.SnapNotification) {
			h.logger.Warn("rejected unauthenticated payment notification",
				slog.String("gateway_order_id", cb.OrderID))
			h.writeError(w, model.NewUnauthorizedError("invalid notification signature"))
			return
		}
		var ok bool
		res, ok = cb.SnapNotification.Result()
		if !ok {
			h.writeJSON(w, http.StatusOK, callbackResponse{Ignored: true})
			return
		}
		id = cb.OrderID
		signed = true
	} else {
		if cb.GatewayOrderID == "" {
			h.writeError(w, model.NewValidationError("gatewayOrderId", "required"))
			return
		}
		switch cb.Outcome {
		case gateway.OutcomeSuccess:
			res = gateway.WidgetResult{
				Outcome: gateway.OutcomeSuccess,
				Result: model.GatewayResult{
					GatewayOrderID:   cb.GatewayOrderID,
					GatewayPaymentID: cb.GatewayPaymentID,
					GatewaySignature: cb.GatewaySignature,
				},
			}
		case gateway.OutcomeDismissed:
			res = gateway.WidgetResult{Outcome: gateway.OutcomeDismissed}
		default:
			h.writeError(w, model.NewValidationError("outcome", "must be success or dismissed"))
			return
		}
		id = cb.GatewayOrderID
	}

	rec, err := gw.PendingByGatewayOrder(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound) && signed:
		// Unknown or already finished payment; acknowledge so the gateway
		// stops resending.
		h.writeJSON(w, http.StatusOK, callbackResponse{Ignored: true})
		return
	case err != nil:
		h.writeError(w, err)
		return
	}
	if !signed && (cb.CallbackToken == "" ||
		subtle.ConstantTimeCompare([]byte(cb.CallbackToken), []byte(rec.CallbackToken)) != 1) {
		h.logger.Warn("rejected payment callback with bad token",
			slog.String("gateway_order_id", id))
		h.writeError(w, model.NewUnauthorizedError("invalid callback token"))
		return
	}

	if h.hub.Resolve(id, res) {
		h.logger.Info("payment callback delivered",
			slog.String("gateway_order_id", id),
			slog.String("outcome", string(res.Outcome)))
		h.writeJSON(w, http.StatusOK, callbackResponse{Delivered: true})
		return
	}

	s := h.registry.Get(ctx, rec.ShopperID)
	out, err := s.Checkout.SettleCallback(ctx, id, res)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("payment callback settled",
		slog.String("gateway_order_id", id),
		slog.String("shopper_id", rec.ShopperID),
		slog.String("status", string(out.Status)))
	h.writeJSON(w, http.StatusOK, callbackResponse{Settled: true, Status: out.Status})
}
