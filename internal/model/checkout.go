package model

import "strings"

// CheckoutMode selects where a checkout's items come from.
type CheckoutMode string

const (
	ModeCart   CheckoutMode = "CART"
	ModeBuyNow CheckoutMode = "BUY_NOW"
)

func (m CheckoutMode) Valid() bool {
	return m == ModeCart || m == ModeBuyNow
}

// CheckoutStep is a position in the linear checkout workflow.
type CheckoutStep string

const (
	StepAddress       CheckoutStep = "ADDRESS"
	StepPaymentMethod CheckoutStep = "PAYMENT_METHOD"
	StepReview        CheckoutStep = "REVIEW"
	StepComplete      CheckoutStep = "COMPLETE" // terminal
)

// PaymentMethod is how an order will be paid.
type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentGateway PaymentMethod = "GATEWAY"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCOD || p == PaymentGateway
}

// ShippingInfo is the delivery address collected in the ADDRESS step.
type ShippingInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country,omitempty"`
}

// MissingFields lists the required fields that are empty after trimming,
// using their wire names.
func (s ShippingInfo) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", s.FirstName},
		{"phone", s.Phone},
		{"street", s.Street},
		{"city", s.City},
		{"state", s.State},
		{"zipCode", s.ZipCode},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// FullName joins first and last name for gateway prefill.
func (s ShippingInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}
