package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		name string
		q    int
		max  int
		want int
	}{
		{"within range", 3, 5, 3},
		{"above max", 9, 5, 5},
		{"at max", 5, 5, 5},
		{"zero clamps up", 0, 5, 1},
		{"negative clamps up", -2, 5, 1},
		{"unknown max", 40, 0, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampQuantity(tt.q, tt.max); got != tt.want {
				t.Errorf("ClampQuantity(%d, %d) = %d, want %d", tt.q, tt.max, got, tt.want)
			}
		})
	}
}

func TestLineItemKey(t *testing.T) {
	a := LineItem{ProductID: "A", Size: "M", Color: "red"}
	b := LineItem{ProductID: "A", Size: "L", Color: "red"}
	if a.Key() == b.Key() {
		t.Error("different sizes should produce different keys")
	}
	if a.Key() != (LineKey{ProductID: "A", Size: "M", Color: "red"}) {
		t.Errorf("Key() = %+v", a.Key())
	}
}

func TestCartStateCloneIsDeep(t *testing.T) {
	s := CartState{Items: []LineItem{{ProductID: "A", Quantity: 1}}}
	c := s.Clone()
	c.Items[0].Quantity = 7
	if s.Items[0].Quantity != 1 {
		t.Error("Clone shares backing array with original")
	}
}

func TestProductLineItemClampsToStock(t *testing.T) {
	p := Product{ID: "P", Price: decimal.NewFromInt(120), Stock: 2, SellerID: "S"}
	li := p.LineItem(5, "", "")
	if li.Quantity != 2 || li.MaxQuantity != 2 {
		t.Errorf("LineItem() quantity=%d max=%d, want 2/2", li.Quantity, li.MaxQuantity)
	}
	if li.SellerID != "S" {
		t.Errorf("SellerID = %q, want S", li.SellerID)
	}
}

func TestShippingInfoMissingFields(t *testing.T) {
	tests := []struct {
		name string
		info ShippingInfo
		want []string
	}{
		{
			name: "complete",
			info: ShippingInfo{FirstName: "Asha", Phone: "99", Street: "1 Main", City: "Pune", State: "MH", ZipCode: "411001"},
			want: nil,
		},
		{
			name: "whitespace counts as missing",
			info: ShippingInfo{FirstName: "  ", Phone: "99", Street: "1 Main", City: "Pune", State: "MH", ZipCode: "\t"},
			want: []string{"firstName", "zipCode"},
		},
		{
			name: "optional fields ignored",
			info: ShippingInfo{LastName: "K", Email: "a@b.c"},
			want: []string{"firstName", "phone", "street", "city", "state", "zipCode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.MissingFields()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MissingFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGatewayOrderIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  GatewayOrderIntent
		wantErr bool
	}{
		{"complete", GatewayOrderIntent{GatewayOrderID: "order_1", OriginalOrderData: json.RawMessage(`{"items":[]}`)}, false},
		{"missing id", GatewayOrderIntent{OriginalOrderData: json.RawMessage(`{}`)}, true},
		{"missing order data", GatewayOrderIntent{GatewayOrderID: "order_1"}, true},
		{"null order data", GatewayOrderIntent{GatewayOrderID: "order_1", OriginalOrderData: json.RawMessage(`null`)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errorsIsPrecondition(err) {
				t.Errorf("Validate() error = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestGatewayOrderIntentDecodesServerShape(t *testing.T) {
	body := `{"id":"order_9","amount":52500,"currency":"INR","key":"pk","userDetails":{"name":"Asha"},"orderData":{"total":"525"}}`
	var intent GatewayOrderIntent
	if err := json.Unmarshal([]byte(body), &intent); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if intent.GatewayOrderID != "order_9" || intent.Amount != 52500 {
		t.Errorf("intent = %+v", intent)
	}
	if string(intent.OriginalOrderData) != `{"total":"525"}` {
		t.Errorf("OriginalOrderData = %s, want bytes untouched", intent.OriginalOrderData)
	}
}
