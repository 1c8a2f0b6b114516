package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is one line of the canonical order payload.
type OrderLine struct {
	Product  string          `json:"product"`
	Seller   string          `json:"seller"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GST      decimal.Decimal `json:"gst"`
	Category string          `json:"category,omitempty"`
}

// OrderPayload is what the order and payment services receive.
type OrderPayload struct {
	Items         []OrderLine     `json:"items"`
	ShippingInfo  ShippingInfo    `json:"shippingInfo"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	CouponCode    string          `json:"couponCode,omitempty"`
}

// Order is a created order as reported by the server.
type Order struct {
	ID            string          `json:"id"`
	Status        string          `json:"status,omitempty"`
	PaymentStatus string          `json:"paymentStatus,omitempty"`
	PaymentMethod PaymentMethod   `json:"paymentMethod,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// GatewayPrefill is shopper detail passed through to the hosted widget.
type GatewayPrefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"contact,omitempty"`
}

// GatewayOrderIntent is the server-issued handle for one hosted payment.
// OriginalOrderData must be echoed back byte for byte during verification.
type GatewayOrderIntent struct {
	GatewayOrderID    string          `json:"id"`
	Amount            int64           `json:"amount"` // minor units, computed by the server
	Currency          string          `json:"currency"`
	Key               string          `json:"key,omitempty"`
	Prefill           GatewayPrefill  `json:"userDetails"`
	OriginalOrderData json.RawMessage `json:"orderData"`
}

// Validate checks the fields without which a collected payment could not
// be matched to an order.
func (i GatewayOrderIntent) Validate() error {
	if i.GatewayOrderID == "" {
		return NewPreconditionError("gateway intent is missing its order id")
	}
	if len(i.OriginalOrderData) == 0 || string(i.OriginalOrderData) == "null" {
		return NewPreconditionError("gateway intent is missing its original order data")
	}
	return nil
}

// GatewayResult holds the identifiers the gateway issues on success.
type GatewayResult struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
}

// VerifyPaymentRequest is sent to the payment service after a gateway success.
type VerifyPaymentRequest struct {
	GatewayResult
	OrderData json.RawMessage `json:"orderData"`
}

// CreatePaymentRequest asks the payment service for a gateway intent.
type CreatePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	OrderData OrderPayload    `json:"orderData"`
}

// PendingVerification records a gateway payment whose verification has not
// yet succeeded. It is persisted before the widget opens so that a gateway
// answer arriving after the shopper's request has ended can still become
// an order.
type PendingVerification struct {
	SessionID string               `json:"sessionId"`
	ShopperID string               `json:"shopperId"`
	Mode      CheckoutMode         `json:"mode"`
	Request   VerifyPaymentRequest `json:"request"`
	// AwaitingCallback is set until the gateway reports how the widget
	// session ended. Request then carries only the gateway order id.
	AwaitingCallback bool `json:"awaitingCallback,omitempty"`
	// CallbackToken authenticates results posted back by the shopper's
	// browser for this payment.
	CallbackToken string    `json:"callbackToken,omitempty"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"lastError,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
