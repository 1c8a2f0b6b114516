package adapter

import (
	"context"

	"storefront-checkout/internal/model"
)

// Mock implements Marketplace for testing.
// Each method can be configured via function fields.
type Mock struct {
	GetCartFunc               func(ctx context.Context) (*Cart, error)
	AddToCartFunc             func(ctx context.Context, req *AddToCartRequest) (*Cart, error)
	UpdateCartItemFunc        func(ctx context.Context, req *UpdateCartItemRequest) (*Cart, error)
	RemoveFromCartFunc        func(ctx context.Context, productID string) (*Cart, error)
	ClearCartFunc             func(ctx context.Context) (*Cart, error)
	GetProductByIDFunc        func(ctx context.Context, id string) (*model.Product, error)
	CreateOrderFunc           func(ctx context.Context, payload *model.OrderPayload) (*model.Order, error)
	CreateOrderForPaymentFunc func(ctx context.Context, req *model.CreatePaymentRequest) (*model.GatewayOrderIntent, error)
	VerifyPaymentFunc         func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error)
}

// GetCart calls the configured GetCartFunc or returns an empty cart.
func (m *Mock) GetCart(ctx context.Context) (*Cart, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx)
	}
	return &Cart{Items: []model.LineItem{}}, nil
}

// AddToCart calls the configured AddToCartFunc or returns an error.
func (m *Mock) AddToCart(ctx context.Context, req *AddToCartRequest) (*Cart, error) {
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, req)
	}
	return nil, model.NewUpstreamError("cart service", nil)
}

// UpdateCartItem calls the configured UpdateCartItemFunc or returns an error.
func (m *Mock) UpdateCartItem(ctx context.Context, req *UpdateCartItemRequest) (*Cart, error) {
	if m.UpdateCartItemFunc != nil {
		return m.UpdateCartItemFunc(ctx, req)
	}
	return nil, model.NewUpstreamError("cart service", nil)
}

// RemoveFromCart calls the configured RemoveFromCartFunc or returns an error.
func (m *Mock) RemoveFromCart(ctx context.Context, productID string) (*Cart, error) {
	if m.RemoveFromCartFunc != nil {
		return m.RemoveFromCartFunc(ctx, productID)
	}
	return nil, model.NewUpstreamError("cart service", nil)
}

// ClearCart calls the configured ClearCartFunc or returns an empty cart.
func (m *Mock) ClearCart(ctx context.Context) (*Cart, error) {
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx)
	}
	return &Cart{Items: []model.LineItem{}}, nil
}

// GetProductByID calls the configured GetProductByIDFunc or returns not found.
func (m *Mock) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	if m.GetProductByIDFunc != nil {
		return m.GetProductByIDFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("product")
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, payload *model.OrderPayload) (*model.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, payload)
	}
	return nil, model.NewInternalError(nil)
}

// CreateOrderForPayment calls the configured CreateOrderForPaymentFunc or returns an error.
func (m *Mock) CreateOrderForPayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.GatewayOrderIntent, error) {
	if m.CreateOrderForPaymentFunc != nil {
		return m.CreateOrderForPaymentFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// VerifyPayment calls the configured VerifyPaymentFunc or returns an error.
func (m *Mock) VerifyPayment(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// Verify Mock implements Marketplace interface at compile time.
var _ Marketplace = (*Mock)(nil)
