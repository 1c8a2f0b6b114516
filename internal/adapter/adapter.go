// Package adapter defines the remote services the storefront pipeline calls.
// The core depends only on these interfaces; internal/marketplace provides
// the REST implementation and Mock serves tests.
package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront-checkout/internal/model"
)

// CartService is the remote source of truth for cart contents.
// Every mutation answers with the full server-side cart.
type CartService interface {
	GetCart(ctx context.Context) (*Cart, error)
	AddToCart(ctx context.Context, req *AddToCartRequest) (*Cart, error)
	UpdateCartItem(ctx context.Context, req *UpdateCartItemRequest) (*Cart, error)
	RemoveFromCart(ctx context.Context, productID string) (*Cart, error)
	ClearCart(ctx context.Context) (*Cart, error)
}

// ProductService resolves a single product. Used only for buy-now checkout.
type ProductService interface {
	GetProductByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderService creates cash-on-delivery orders.
type OrderService interface {
	// CreateOrder succeeds only when the server returns an order with an id.
	CreateOrder(ctx context.Context, payload *model.OrderPayload) (*model.Order, error)
}

// PaymentService brokers gateway payments. The server computes the
// chargeable amount and is the only party that may mark an order paid.
type PaymentService interface {
	CreateOrderForPayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.GatewayOrderIntent, error)
	// VerifyPayment must be safe to repeat with the same order data.
	VerifyPayment(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error)
}

// Marketplace bundles every service; the REST client implements it.
type Marketplace interface {
	CartService
	ProductService
	OrderService
	PaymentService
}

// Cart is the server's authoritative cart.
type Cart struct {
	Items      []model.LineItem `json:"items"`
	TotalPrice decimal.Decimal  `json:"totalPrice"`
}

// AddToCartRequest adds quantity of one product variant.
type AddToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// UpdateCartItemRequest sets the quantity of a product's line.
type UpdateCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type contextKey int

const (
	tokenKey contextKey = iota
	idempotencyKey
)

// WithToken attaches the shopper's bearer token for remote calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// Token returns the bearer token set by WithToken.
func Token(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey).(string)
	return v
}

// WithIdempotencyKey marks the remote call made with ctx so the server can
// deduplicate retries of it.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey, key)
}

// IdempotencyKey returns the key set by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) string {
	v, _ := ctx.Value(idempotencyKey).(string)
	return v
}
