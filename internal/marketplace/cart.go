package marketplace

import (
	"context"
	"net/http"
	"net/url"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
)

// GetCart fetches the shopper's server-side cart.
func (c *Client) GetCart(ctx context.Context) (*adapter.Cart, error) {
	return c.cartCall(ctx, http.MethodGet, "/api/cart", nil)
}

// AddToCart adds a product variant. The server merges quantities.
func (c *Client) AddToCart(ctx context.Context, req *adapter.AddToCartRequest) (*adapter.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/api/cart/add", req)
}

// UpdateCartItem sets a product's quantity.
func (c *Client) UpdateCartItem(ctx context.Context, req *adapter.UpdateCartItemRequest) (*adapter.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/api/cart/update", req)
}

// RemoveFromCart drops a product's line.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*adapter.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/api/cart/remove/"+url.PathEscape(productID), nil)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*adapter.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/api/cart/clear", nil)
}

func (c *Client) cartCall(ctx context.Context, method, path string, body any) (*adapter.Cart, error) {
	var resp cartResponse
	if err := c.do(ctx, serviceCart, method, path, body, &resp); err != nil {
		return nil, err
	}
	if err := checkEnvelope(serviceCart, resp.envelope); err != nil {
		return nil, err
	}

	items := make([]model.LineItem, 0, len(resp.Cart.Items))
	for _, it := range resp.Cart.Items {
		li := it.toModel()
		if li.ProductID == "" || li.Quantity < 1 {
			continue
		}
		items = append(items, li)
	}
	return &adapter.Cart{Items: items, TotalPrice: resp.Cart.TotalPrice}, nil
}
