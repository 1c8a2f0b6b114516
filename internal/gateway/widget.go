// Package gateway hands a checkout to an external hosted-payment widget and
// turns the widget's asynchronous answer into server verification.
//
// The widget's success and dismiss callbacks are surfaced as a single
// returned WidgetResult, so callers make one blocking call per payment.
package gateway

import (
	"context"
	"sync"

	"storefront-checkout/internal/model"
)

// Outcome is how a widget session ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDismissed Outcome = "dismissed"
)

// WidgetResult is the single answer of one widget session. Result is only
// set when Outcome is OutcomeSuccess.
type WidgetResult struct {
	Outcome Outcome
	Result  model.GatewayResult
}

// Checkout is what a widget needs to open a session.
type Checkout struct {
	SessionID string
	Intent    model.GatewayOrderIntent
	// Present is called with whatever the shopper's browser needs to show
	// the widget: a hosted page URL, or the intent parameters. May be nil.
	Present func(Presentation)
	// CallbackToken must accompany results posted back by the browser.
	CallbackToken string
}

// Presentation tells the UI layer how to show the widget.
type Presentation struct {
	Provider       string               `json:"provider"`
	RedirectURL    string               `json:"redirectUrl,omitempty"`
	Token          string               `json:"token,omitempty"`
	GatewayOrderID string               `json:"gatewayOrderId"`
	Amount         int64                `json:"amount"`
	Currency       string               `json:"currency"`
	Key            string               `json:"key,omitempty"`
	Prefill        model.GatewayPrefill `json:"prefill"`
	CallbackToken  string               `json:"callbackToken,omitempty"`
}

// Widget is an external hosted-checkout integration.
type Widget interface {
	// Name identifies the provider in logs and presentations.
	Name() string
	// Load prepares the widget. It is called at most once successfully per
	// process; see Loader.
	Load(ctx context.Context) error
	// Open runs one payment session and blocks until the shopper pays,
	// dismisses the widget, or ctx ends.
	Open(ctx context.Context, c Checkout) (WidgetResult, error)
}

// Loader loads a widget on first use and remembers only success, so a
// failed load is retried by the next payment.
type Loader struct {
	widget Widget

	mu     sync.Mutex
	loaded bool
	loads  int
}

func NewLoader(w Widget) *Loader {
	return &Loader{widget: w}
}

// Ensure loads the widget unless a previous load succeeded.
func (l *Loader) Ensure(ctx context.Context) (Widget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.widget, nil
	}
	l.loads++
	if err := l.widget.Load(ctx); err != nil {
		return nil, err
	}
	l.loaded = true
	return l.widget, nil
}

// Loads reports how many load attempts have been made.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}
