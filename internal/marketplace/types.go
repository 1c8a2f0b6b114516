package marketplace

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"storefront-checkout/internal/model"
)

// envelope is the marketplace's common response wrapper. Every endpoint
// answers {success, message, ...}; a 2xx with success=false is a rejection.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// wireProduct accepts both "_id" and "id" for the identifier.
type wireProduct struct {
	MongoID  string          `json:"_id"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Seller   wireRef         `json:"seller"`
	Category wireRef         `json:"category"`
	GSTRate  decimal.Decimal `json:"gstRate"`
}

func (p wireProduct) id() string {
	if p.ID != "" {
		return p.ID
	}
	return p.MongoID
}

func (p wireProduct) toModel() model.Product {
	return model.Product{
		ID:       p.id(),
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		SellerID: p.Seller.ID,
		Category: p.Category.ID,
		GSTRate:  p.GSTRate,
	}
}

// wireRef is a reference the server sends either as a bare id string or as
// a populated object with an _id or name.
type wireRef struct {
	ID string
}

func (r *wireRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = s
		return nil
	}
	var obj struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.ID != "":
		r.ID = obj.ID
	case obj.MongoID != "":
		r.ID = obj.MongoID
	default:
		r.ID = obj.Name
	}
	return nil
}

type wireCartItem struct {
	Product  wireProduct     `json:"product"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

func (it wireCartItem) toModel() model.LineItem {
	p := it.Product.toModel()
	price := it.Price
	if price.IsZero() {
		price = p.Price
	}
	return model.LineItem{
		ProductID:   p.ID,
		Name:        p.Name,
		Size:        it.Size,
		Color:       it.Color,
		Quantity:    it.Quantity,
		UnitPrice:   price,
		MaxQuantity: p.Stock,
		SellerID:    p.SellerID,
		Category:    p.Category,
		GSTRate:     p.GSTRate,
	}
}

type wireCart struct {
	Items      []wireCartItem  `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type cartResponse struct {
	envelope
	Cart wireCart `json:"cart"`
}

type productResponse struct {
	envelope
	Product wireProduct `json:"product"`
}

type wireOrder struct {
	MongoID       string              `json:"_id"`
	ID            string              `json:"id"`
	Status        string              `json:"orderStatus"`
	PaymentStatus string              `json:"paymentStatus"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func (o wireOrder) toModel() model.Order {
	id := o.ID
	if id == "" {
		id = o.MongoID
	}
	return model.Order{
		ID:            id,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
	}
}

type orderResponse struct {
	envelope
	Order *wireOrder `json:"order"`
}

type paymentIntentResponse struct {
	envelope
	model.GatewayOrderIntent
}
