package checkout

import (
	"fmt"
	"strings"

	"storefront-checkout/internal/model"
)

// BuildOrderPayload assembles the canonical payload sent to the order and
// payment services. Every line needs a product id, a seller id and a
// quantity of at least one; category and GST rate are passed through when
// known.
func BuildOrderPayload(items []model.LineItem, shipping model.ShippingInfo, method model.PaymentMethod, totals model.Totals, coupon string) (*model.OrderPayload, error) {
	if len(items) == 0 {
		return nil, model.NewValidationError("items", "order has no items")
	}
	if !method.Valid() {
		return nil, model.NewValidationError("paymentMethod", fmt.Sprintf("unsupported payment method %q", method))
	}

	lines := make([]model.OrderLine, 0, len(items))
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.ProductID) == "":
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].product", i), "product id is required")
		case strings.TrimSpace(it.SellerID) == "":
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].seller", i), "seller id is required")
		case it.Quantity < 1:
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		lines = append(lines, model.OrderLine{
			Product:  it.ProductID,
			Seller:   it.SellerID,
			Quantity: it.Quantity,
			Price:    it.UnitPrice,
			Subtotal: it.Subtotal(),
			GST:      it.GSTRate,
			Category: it.Category,
		})
	}

	return &model.OrderPayload{
		Items:         lines,
		ShippingInfo:  shipping,
		PaymentMethod: method,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Shipping:      totals.Shipping,
		Tax:           totals.Tax,
		Total:         totals.Total,
		CouponCode:    coupon,
	}, nil
}
