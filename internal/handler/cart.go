package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront-checkout/internal/cartstore"
	"storefront-checkout/internal/model"
)

type updateItemRequest struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
}

type couponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	Applied bool            `json:"applied"`
	Cart    model.CartState `json:"cart"`
}

type syncResponse struct {
	Cart   model.CartState `json:"cart"`
	Notice string          `json:"notice,omitempty"`
}

// handleGetCart returns the current cart.
// GET /api/v1/cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.shopper(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s.Cart.Snapshot())
}

// handleSyncCart pulls the server's cart. A failed sync still answers with
// the local cart.
// POST /api/v1/cart/sync
func (h *Handler) handleSyncCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := s.Cart.SyncCart(ctx)
	resp := syncResponse{Cart: state}
	if err != nil {
		if ctx.Err() != nil {
			h.writeError(w, ctx.Err())
			return
		}
		resp.Notice = cartstore.NoticeOffline
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleAddItem adds a product variant to the cart.
// POST /api/v1/cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var item model.LineItem
	if err := decodeJSON(r, &item); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(item.ProductID) == "" {
		h.writeError(w, model.NewValidationError("productId", "required"))
		return
	}

	h.logger.InfoContext(ctx, "adding cart item",
		slog.String("shopper_id", s.ID),
		slog.String("product_id", item.ProductID),
		slog.Int("quantity", item.Quantity),
	)

	res, err := s.Cart.Add(ctx, item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleUpdateItem sets a line's quantity; zero or less removes it.
// PATCH /api/v1/cart/items/{productId}
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	key := model.LineKey{ProductID: chi.URLParam(r, "productId"), Size: req.Size, Color: req.Color}

	res, err := s.Cart.UpdateQuantity(ctx, key, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleRemoveItem drops a line. Size and color come from the query.
// DELETE /api/v1/cart/items/{productId}?size=M&color=red
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	q := r.URL.Query()
	key := model.LineKey{ProductID: chi.URLParam(r, "productId"), Size: q.Get("size"), Color: q.Get("color")}

	res, err := s.Cart.Remove(ctx, key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleClearCart empties the cart.
// DELETE /api/v1/cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := s.Cart.Clear(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleApplyCoupon applies a coupon. A code that earns no discount is
// reported with applied=false and leaves the cart unchanged.
// POST /api/v1/cart/coupon
func (h *Handler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.writeError(w, model.NewValidationError("code", "required"))
		return
	}

	applied := s.Cart.ApplyCouponCode(ctx, req.Code)
	h.writeJSON(w, http.StatusOK, couponResponse{Applied: applied, Cart: s.Cart.Snapshot()})
}

// handleRemoveCoupon drops the applied coupon.
// DELETE /api/v1/cart/coupon
func (h *Handler) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.shopper(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := s.Cart.RemoveCoupon(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}
