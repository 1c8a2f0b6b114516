package marketplace

import (
	"context"
	"net/http"
	"net/url"

	"storefront-checkout/internal/model"
)

// GetProductByID fetches one product.
func (c *Client) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	var resp productResponse
	if err := c.do(ctx, serviceProduct, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if err := checkEnvelope(serviceProduct, resp.envelope); err != nil {
		return nil, err
	}
	p := resp.Product.toModel()
	if p.ID == "" {
		return nil, model.NewNotFoundError("product")
	}
	return &p, nil
}

// CreateOrder submits an order payload.
func (c *Client) CreateOrder(ctx context.Context, payload *model.OrderPayload) (*model.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, serviceOrder, http.MethodPost, "/api/orders", payload, &resp); err != nil {
		return nil, err
	}
	return orderFrom(serviceOrder, resp)
}

// CreateOrderForPayment asks the server for a gateway intent.
func (c *Client) CreateOrderForPayment(ctx context.Context, req *model.CreatePaymentRequest) (*model.GatewayOrderIntent, error) {
	var resp paymentIntentResponse
	if err := c.do(ctx, servicePayment, http.MethodPost, "/api/payment/create-order", req, &resp); err != nil {
		return nil, err
	}
	if err := checkEnvelope(servicePayment, resp.envelope); err != nil {
		return nil, err
	}
	intent := resp.GatewayOrderIntent
	return &intent, nil
}

// VerifyPayment forwards gateway identifiers and the original order data.
func (c *Client) VerifyPayment(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
	var resp orderResponse
	if err := c.do(ctx, servicePayment, http.MethodPost, "/api/payment/verify", req, &resp); err != nil {
		return nil, err
	}
	return orderFrom(servicePayment, resp)
}

// orderFrom accepts a response only if it names a created order.
func orderFrom(s service, resp orderResponse) (*model.Order, error) {
	if err := checkEnvelope(s, resp.envelope); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, model.NewRejectedError(string(s), "response did not include an order")
	}
	order := resp.Order.toModel()
	if order.ID == "" {
		return nil, model.NewRejectedError(string(s), "response order has no id")
	}
	return &order, nil
}
