// Package handler provides the storefront's REST and MCP surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/session"
	"storefront-checkout/internal/storefront"
)

// NotificationVerifier authenticates gateway payment notifications.
type NotificationVerifier interface {
	Authentic(n gateway.SnapNotification) bool
}

// Options tunes a Handler.
type Options struct {
	// ClientVersion is the highest client API version served.
	ClientVersion string
	// Notifications verifies Snap notifications. Nil rejects them.
	Notifications NotificationVerifier
	// PlaceTimeout bounds a background order submission, including the
	// time the shopper spends in the payment widget. Default 30m.
	PlaceTimeout time.Duration
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	registry *storefront.Registry
	hub      *gateway.CallbackHub
	opts     Options
	logger   *slog.Logger
}

// New creates a Handler. hub may be nil when no payment gateway is
// configured.
func New(registry *storefront.Registry, hub *gateway.CallbackHub, opts Options, logger *slog.Logger) *Handler {
	if opts.PlaceTimeout <= 0 {
		opts.PlaceTimeout = 30 * time.Minute
	}
	return &Handler{
		registry: registry,
		hub:      hub,
		opts:     opts,
		logger:   logger,
	}
}

// Routes builds the router. Storefront endpoints require the
// Storefront-Session header; health, callback and MCP do not.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(session.Middleware(h.opts.ClientVersion, h.logger))

	r.Get("/health", h.handleHealth)
	r.Get("/healthz", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cart", h.handleGetCart)
		r.Post("/cart/sync", h.handleSyncCart)
		r.Post("/cart/items", h.handleAddItem)
		r.Patch("/cart/items/{productId}", h.handleUpdateItem)
		r.Delete("/cart/items/{productId}", h.handleRemoveItem)
		r.Delete("/cart", h.handleClearCart)
		r.Post("/cart/coupon", h.handleApplyCoupon)
		r.Delete("/cart/coupon", h.handleRemoveCoupon)

		r.Post("/checkout", h.handleBeginCheckout)
		r.Get("/checkout", h.handleGetCheckout)
		r.Delete("/checkout", h.handleAbandonCheckout)
		r.Put("/checkout/shipping", h.handleSetShipping)
		r.Post("/checkout/next", h.handleNext)
		r.Post("/checkout/back", h.handleBack)
		r.Put("/checkout/payment-method", h.handleSelectPaymentMethod)
		r.Post("/checkout/place-order", h.handlePlaceOrder)
		r.Post("/checkout/verification/retry", h.handleRetryVerification)

		r.Post("/payments/callback", h.handlePaymentCallback)
	})

	r.Handle("/mcp", h.NewMCPHandler())
	return r
}

// shopper resolves the shopper named by the request's session identity.
func (h *Handler) shopper(ctx context.Context) (*storefront.Shopper, error) {
	id, ok := session.FromContext(ctx)
	if !ok {
		return nil, model.NewValidationError(session.HeaderName, "header required")
	}
	return h.registry.Get(ctx, id.ShopperID), nil
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Shoppers: h.registry.Len()})
}

type healthResponse struct {
	Status   string `json:"status"`
	Shoppers int    `json:"shoppers"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		apiErr = &model.APIError{
			Code:       "TIMEOUT",
			Message:    "the request was cancelled before it completed",
			StatusCode: http.StatusGatewayTimeout,
		}
	default:
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
