package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"storefront-checkout/internal/model"
)

// snapTransactions is the part of snap.Client the widget uses.
type snapTransactions interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// SnapConfig configures the midtrans Snap hosted page.
type SnapConfig struct {
	ServerKey  string
	Production bool
}

// SnapWidget runs payments on the midtrans Snap hosted page. Open creates
// the Snap transaction for the server-issued gateway order id, presents the
// redirect URL, and waits for the payment notification to reach the hub.
type SnapWidget struct {
	cfg    SnapConfig
	hub    *CallbackHub
	client snapTransactions
}

func NewSnapWidget(cfg SnapConfig, hub *CallbackHub) *SnapWidget {
	return &SnapWidget{cfg: cfg, hub: hub}
}

func (w *SnapWidget) Name() string { return "snap" }

// Load builds the Snap client. It fails without a server key.
func (w *SnapWidget) Load(ctx context.Context) error {
	if w.client != nil {
		return nil
	}
	if w.cfg.ServerKey == "" {
		return fmt.Errorf("snap: server key is not configured")
	}
	env := midtrans.Sandbox
	if w.cfg.Production {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(w.cfg.ServerKey, env)
	w.client = &client
	return nil
}

// Open charges the intent's amount in whole currency units. Snap does not
// accept fractional amounts, so an intent with a fractional amount is
// refused rather than charged a different sum.
func (w *SnapWidget) Open(ctx context.Context, c Checkout) (WidgetResult, error) {
	if w.client == nil {
		return WidgetResult{}, fmt.Errorf("snap: widget not loaded")
	}

	amount := model.FromMinorUnits(c.Intent.Amount)
	if !amount.IsInteger() {
		return WidgetResult{}, model.NewPreconditionError(
			fmt.Sprintf("gateway amount %s is not a whole currency unit", model.FormatAmount(amount)))
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  c.Intent.GatewayOrderID,
			GrossAmt: amount.IntPart(),
		},
		CustomerDetail: snapCustomer(c.Intent.Prefill),
	}

	resp, snapErr := w.client.CreateTransaction(req)
	if snapErr != nil {
		return WidgetResult{}, fmt.Errorf("snap: create transaction: %s", snapErr.Error())
	}

	w.hub.Expect(c.Intent.GatewayOrderID)
	if c.Present != nil {
		c.Present(Presentation{
			Provider:       w.Name(),
			RedirectURL:    resp.RedirectURL,
			Token:          resp.Token,
			GatewayOrderID: c.Intent.GatewayOrderID,
			Amount:         c.Intent.Amount,
			Currency:       c.Intent.Currency,
			Prefill:        c.Intent.Prefill,
			CallbackToken:  c.CallbackToken,
		})
	}

	return w.hub.Wait(ctx, c.Intent.GatewayOrderID)
}

func snapCustomer(p model.GatewayPrefill) *midtrans.CustomerDetails {
	if p == (model.GatewayPrefill{}) {
		return nil
	}
	first, last, _ := strings.Cut(p.Name, " ")
	return &midtrans.CustomerDetails{
		FName: first,
		LName: last,
		Email: p.Email,
		Phone: p.Phone,
	}
}

// SnapNotification is the subset of a Snap payment notification the hub
// needs.
type SnapNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// Result maps a notification to a widget result. ok is false for
// intermediate states (pending, challenged) that should be ignored.
func (n SnapNotification) Result() (res WidgetResult, ok bool) {
	switch n.TransactionStatus {
	case "capture":
		if n.FraudStatus == "challenge" {
			return WidgetResult{}, false
		}
		fallthrough
	case "settlement":
		return WidgetResult{
			Outcome: OutcomeSuccess,
			Result: model.GatewayResult{
				GatewayOrderID:   n.OrderID,
				GatewayPaymentID: n.TransactionID,
				GatewaySignature: n.SignatureKey,
			},
		}, true
	case "deny", "cancel", "expire", "failure":
		return WidgetResult{Outcome: OutcomeDismissed}, true
	default:
		return WidgetResult{}, false
	}
}

// Authentic checks the notification's signature_key, which Snap computes as
// sha512(order_id + status_code + gross_amount + server key).
func (w *SnapWidget) Authentic(n SnapNotification) bool {
	if w.cfg.ServerKey == "" || n.SignatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + w.cfg.ServerKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}
