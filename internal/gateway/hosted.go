package gateway

import "context"

// HostedWidget is for gateways whose widget runs entirely in the shopper's
// browser. Open presents the intent parameters and waits for the browser to
// post the widget's answer back through the hub, together with the
// presentation's callback token.
type HostedWidget struct {
	hub *CallbackHub
}

func NewHostedWidget(hub *CallbackHub) *HostedWidget {
	return &HostedWidget{hub: hub}
}

func (w *HostedWidget) Name() string { return "hosted" }

func (w *HostedWidget) Load(context.Context) error { return nil }

func (w *HostedWidget) Open(ctx context.Context, c Checkout) (WidgetResult, error) {
	w.hub.Expect(c.Intent.GatewayOrderID)
	if c.Present != nil {
		c.Present(Presentation{
			Provider:       w.Name(),
			GatewayOrderID: c.Intent.GatewayOrderID,
			Amount:         c.Intent.Amount,
			Currency:       c.Intent.Currency,
			Key:            c.Intent.Key,
			Prefill:        c.Intent.Prefill,
			CallbackToken:  c.CallbackToken,
		})
	}
	return w.hub.Wait(ctx, c.Intent.GatewayOrderID)
}
