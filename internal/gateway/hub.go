package gateway

import (
	"context"
	"sync"
)

// CallbackHub routes gateway callbacks, which arrive on the HTTP surface,
// to the widget session waiting for them. Sessions are keyed by gateway
// order id. A widget announces the id with Expect before presenting
// itself, so a callback that beats Wait is held for it. Callbacks for ids
// nobody expects are not kept; the adapter settles those from the
// persisted payment record.
type CallbackHub struct {
	mu       sync.Mutex
	expected map[string]struct{}
	waiters  map[string]chan WidgetResult
	held     map[string]WidgetResult
}

func NewCallbackHub() *CallbackHub {
	return &CallbackHub{
		expected: make(map[string]struct{}),
		waiters:  make(map[string]chan WidgetResult),
		held:     make(map[string]WidgetResult),
	}
}

// Expect marks gatewayOrderID as about to be waited on.
func (h *CallbackHub) Expect(gatewayOrderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expected[gatewayOrderID] = struct{}{}
}

// Wait blocks until Resolve is called for gatewayOrderID or ctx ends. The
// id stops being expected when Wait returns.
func (h *CallbackHub) Wait(ctx context.Context, gatewayOrderID string) (WidgetResult, error) {
	h.mu.Lock()
	if res, ok := h.held[gatewayOrderID]; ok {
		delete(h.held, gatewayOrderID)
		delete(h.expected, gatewayOrderID)
		h.mu.Unlock()
		return res, nil
	}
	ch := make(chan WidgetResult, 1)
	h.expected[gatewayOrderID] = struct{}{}
	h.waiters[gatewayOrderID] = ch
	h.mu.Unlock()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.waiters[gatewayOrderID] == ch {
			delete(h.waiters, gatewayOrderID)
			delete(h.expected, gatewayOrderID)
			return WidgetResult{}, ctx.Err()
		}
		// Resolve won the race; the result is already in ch.
		return <-ch, nil
	}
}

// Resolve delivers a result to the session waiting on, or about to wait
// on, gatewayOrderID. It reports false when no session expects the id.
// Only the first result for an id is kept.
func (h *CallbackHub) Resolve(gatewayOrderID string, res WidgetResult) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.waiters[gatewayOrderID]; ok {
		delete(h.waiters, gatewayOrderID)
		delete(h.expected, gatewayOrderID)
		ch <- res
		return true
	}
	if _, ok := h.expected[gatewayOrderID]; !ok {
		return false
	}
	if _, ok := h.held[gatewayOrderID]; !ok {
		h.held[gatewayOrderID] = res
	}
	return true
}

// Waiting reports whether a session is blocked on gatewayOrderID.
func (h *CallbackHub) Waiting(gatewayOrderID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.waiters[gatewayOrderID]
	return ok
}
