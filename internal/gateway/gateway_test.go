package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/persist"
)

type fakeWidget struct {
	loadErr  error
	loadsOK  int
	result   WidgetResult
	openErr  error
	opened   atomic.Int32
	lastOpen Checkout
}

func (w *fakeWidget) Name() string { return "fake" }

func (w *fakeWidget) Load(context.Context) error {
	if w.loadErr != nil {
		return w.loadErr
	}
	w.loadsOK++
	return nil
}

func (w *fakeWidget) Open(_ context.Context, c Checkout) (WidgetResult, error) {
	w.opened.Add(1)
	w.lastOpen = c
	return w.result, w.openErr
}

func testIntent() model.GatewayOrderIntent {
	return model.GatewayOrderIntent{
		GatewayOrderID:    "gw_123",
		Amount:            105000,
		Currency:          "INR",
		Key:               "pk_test",
		OriginalOrderData: json.RawMessage(`{"items":[{"product":"p1","quantity":2}],"total":"1050"}`),
	}
}

func success() WidgetResult {
	return WidgetResult{
		Outcome: OutcomeSuccess,
		Result: model.GatewayResult{
			GatewayOrderID:   "gw_123",
			GatewayPaymentID: "pay_9",
			GatewaySignature: "sig",
		},
	}
}

func newAdapter(w Widget, payments adapter.PaymentService, pending *persist.PendingVerifications) *Adapter {
	return NewAdapter(Config{
		Widget:   w,
		Payments: payments,
		Pending:  pending,
	})
}

func TestPay_PreconditionAbortsBeforeWidget(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.GatewayOrderIntent)
	}{
		{"missing gateway order id", func(i *model.GatewayOrderIntent) { i.GatewayOrderID = "" }},
		{"missing order data", func(i *model.GatewayOrderIntent) { i.OriginalOrderData = nil }},
		{"null order data", func(i *model.GatewayOrderIntent) { i.OriginalOrderData = json.RawMessage("null") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verifyCalls atomic.Int32
			mock := &adapter.Mock{
				VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
					verifyCalls.Add(1)
					return &model.Order{ID: "o1"}, nil
				},
			}
			w := &fakeWidget{result: success()}
			a := newAdapter(w, mock, nil)

			intent := testIntent()
			tt.mutate(&intent)

			p, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", Intent: intent})
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, model.ErrPrecondition))
			assert.Equal(t, 0, a.Loader().Loads())
			assert.Equal(t, int32(0), w.opened.Load())
			assert.Equal(t, int32(0), verifyCalls.Load())
		})
	}
}

func TestPay_Dismissed(t *testing.T) {
	var verifyCalls atomic.Int32
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			verifyCalls.Add(1)
			return nil, nil
		},
	}
	a := newAdapter(&fakeWidget{result: WidgetResult{Outcome: OutcomeDismissed}}, mock, nil)

	p, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", Intent: testIntent()})
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, p.Status)
	assert.Nil(t, p.Order)
	assert.Equal(t, int32(0), verifyCalls.Load())
}

func TestPay_VerifiesWithOriginalOrderData(t *testing.T) {
	intent := testIntent()
	var got model.VerifyPaymentRequest
	var key string
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			got = *req
			key = adapter.IdempotencyKey(ctx)
			return &model.Order{ID: "order-1", Status: "confirmed"}, nil
		},
	}
	w := &fakeWidget{result: success()}
	a := newAdapter(w, mock, nil)

	p, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", Intent: intent})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	require.NotNil(t, p.Order)
	assert.Equal(t, "order-1", p.Order.ID)

	assert.Equal(t, "gw_123", got.GatewayOrderID)
	assert.Equal(t, "pay_9", got.GatewayPaymentID)
	assert.Equal(t, "sig", got.GatewaySignature)
	assert.Equal(t, string(intent.OriginalOrderData), string(got.OrderData))
	assert.Equal(t, "s1:verify", key)
	assert.Equal(t, "s1", w.lastOpen.SessionID)
}

func TestPay_RejectedSurfacesServerMessage(t *testing.T) {
	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			return nil, model.NewRejectedError("payment service", "signature mismatch")
		},
	}
	a := newAdapter(&fakeWidget{result: success()}, mock, store)

	p, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", ShopperID: "u1", Intent: testIntent()})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "signature mismatch")

	recs, err := store.ListByShopper(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPay_TransientFailureBecomesPendingThenRetry(t *testing.T) {
	ctx := context.Background()
	store := persist.NewPendingVerifications(persist.NewMemoryStore())

	var calls atomic.Int32
	var bodies []string
	down := true
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			calls.Add(1)
			bodies = append(bodies, string(req.OrderData))
			if down {
				return nil, model.NewUpstreamError("payment service", errors.New("503"))
			}
			return &model.Order{ID: "order-7"}, nil
		},
	}
	a := NewAdapter(Config{
		Widget:      &fakeWidget{result: success()},
		Payments:    mock,
		Pending:     store,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})

	p, err := a.Pay(ctx, PayRequest{SessionID: "s1", ShopperID: "u1", Mode: model.ModeCart, Intent: testIntent()})
	require.NoError(t, err)
	assert.Equal(t, StatusPendingVerification, p.Status)
	require.NotNil(t, p.Pending)
	assert.Equal(t, 3, p.Pending.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	recs, err := a.PendingFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s1", recs[0].SessionID)
	assert.Equal(t, model.ModeCart, recs[0].Mode)
	assert.NotEmpty(t, recs[0].LastError)

	down = false
	p, err = a.Retry(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "order-7", p.Order.ID)

	for _, b := range bodies {
		assert.Equal(t, string(testIntent().OriginalOrderData), b)
	}

	recs, err = a.PendingFor(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = a.Retry(ctx, "u1", "s1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPay_LoadFailureIsRetriedNextTime(t *testing.T) {
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			return &model.Order{ID: "o1"}, nil
		},
	}
	w := &fakeWidget{loadErr: errors.New("script blocked"), result: success()}
	a := newAdapter(w, mock, nil)

	_, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", Intent: testIntent()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPaymentFailed))
	assert.Equal(t, 1, a.Loader().Loads())

	w.loadErr = nil
	p, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", Intent: testIntent()})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)

	_, err = a.Pay(context.Background(), PayRequest{SessionID: "s2", Intent: testIntent()})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Loader().Loads())
	assert.Equal(t, 1, w.loadsOK)
}

func TestCallbackHub(t *testing.T) {
	t.Run("late result wakes waiter", func(t *testing.T) {
		h := NewCallbackHub()
		done := make(chan WidgetResult, 1)
		go func() {
			res, err := h.Wait(context.Background(), "gw_1")
			assert.NoError(t, err)
			done <- res
		}()

		require.Eventually(t, func() bool { return h.Waiting("gw_1") }, time.Second, time.Millisecond)
		assert.True(t, h.Resolve("gw_1", success()))

		select {
		case res := <-done:
			assert.Equal(t, OutcomeSuccess, res.Outcome)
		case <-time.After(time.Second):
			t.Fatal("waiter not resolved")
		}
		assert.False(t, h.Waiting("gw_1"))
	})

	t.Run("result before wait is held for expected id", func(t *testing.T) {
		h := NewCallbackHub()
		h.Expect("gw_2")
		assert.True(t, h.Resolve("gw_2", WidgetResult{Outcome: OutcomeDismissed}))
		assert.True(t, h.Resolve("gw_2", success()))

		res, err := h.Wait(context.Background(), "gw_2")
		require.NoError(t, err)
		assert.Equal(t, OutcomeDismissed, res.Outcome)
	})

	t.Run("unexpected result is not kept", func(t *testing.T) {
		h := NewCallbackHub()
		assert.False(t, h.Resolve("gw_old", success()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := h.Wait(ctx, "gw_old")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, h.Waiting("gw_old"))

		assert.False(t, h.Resolve("gw_old", success()), "id is no longer expected after the wait ends")
	})
}

func TestPay_LateCallbackSettles(t *testing.T) {
	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	hub := NewCallbackHub()

	var verifyCalls atomic.Int32
	var got model.VerifyPaymentRequest
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			verifyCalls.Add(1)
			got = *req
			return &model.Order{ID: "order-late"}, nil
		},
	}
	a := newAdapter(NewHostedWidget(hub), mock, store)

	var shown Presentation
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p, err := a.Pay(ctx, PayRequest{
		SessionID: "s1",
		ShopperID: "u1",
		Mode:      model.ModeCart,
		Intent:    testIntent(),
		Present:   func(pr Presentation) { shown = pr },
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingCallback, p.Status)
	require.NotNil(t, p.Pending)
	assert.True(t, p.Pending.AwaitingCallback)
	assert.NotEmpty(t, shown.CallbackToken)
	assert.Equal(t, shown.CallbackToken, p.Pending.CallbackToken)

	rec, err := a.PendingByGatewayOrder(context.Background(), "gw_123")
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.SessionID)
	assert.True(t, rec.AwaitingCallback)

	_, err = a.Retry(context.Background(), "u1", "s1")
	assert.True(t, errors.Is(err, model.ErrPrecondition))
	assert.Equal(t, int32(0), verifyCalls.Load())

	assert.False(t, hub.Resolve("gw_123", success()))
	p, err = a.Settle(context.Background(), "gw_123", success())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "order-late", p.Order.ID)
	assert.Equal(t, int32(1), verifyCalls.Load())
	assert.Equal(t, "pay_9", got.GatewayPaymentID)
	assert.Equal(t, string(testIntent().OriginalOrderData), string(got.OrderData))

	recs, err := a.PendingFor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = a.Settle(context.Background(), "gw_123", success())
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSettle_DismissedClearsRecord(t *testing.T) {
	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	a := newAdapter(NewHostedWidget(NewCallbackHub()), &adapter.Mock{}, store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	p, err := a.Pay(ctx, PayRequest{SessionID: "s1", ShopperID: "u1", Intent: testIntent()})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingCallback, p.Status)

	p, err = a.Settle(context.Background(), "gw_123", WidgetResult{Outcome: OutcomeDismissed})
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, p.Status)

	recs, err := store.ListByShopper(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSettle_WithoutCredentialsKeepsRecord(t *testing.T) {
	ctx := context.Background()
	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	mock := &adapter.Mock{
		VerifyPaymentFunc: func(ctx context.Context, req *model.VerifyPaymentRequest) (*model.Order, error) {
			if adapter.Token(ctx) == "" {
				return nil, model.NewUnauthorizedError("payment service authentication failed")
			}
			return &model.Order{ID: "order-9"}, nil
		},
	}
	a := newAdapter(NewHostedWidget(NewCallbackHub()), mock, store)

	wctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := a.Pay(wctx, PayRequest{SessionID: "s1", ShopperID: "u1", Intent: testIntent()})
	require.NoError(t, err)

	p, err := a.Settle(ctx, "gw_123", success())
	require.NoError(t, err)
	assert.Equal(t, StatusPendingVerification, p.Status)
	require.NotNil(t, p.Pending)
	assert.False(t, p.Pending.AwaitingCallback)
	assert.Equal(t, 1, p.Pending.Attempts, "credential failures are not retried in a loop")

	p, err = a.Retry(adapter.WithToken(ctx, "tok"), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "order-9", p.Order.ID)
}

func TestPay_WidgetFailureClearsRecord(t *testing.T) {
	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	a := newAdapter(&fakeWidget{openErr: errors.New("boom")}, &adapter.Mock{}, store)

	_, err := a.Pay(context.Background(), PayRequest{SessionID: "s1", ShopperID: "u1", Intent: testIntent()})
	assert.True(t, errors.Is(err, model.ErrPaymentFailed))

	recs, err := store.ListByShopper(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type fakeSnap struct {
	req  *snap.Request
	resp *snap.Response
	err  *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.req = req
	return f.resp, f.err
}

func TestSnapWidget_Open(t *testing.T) {
	hub := NewCallbackHub()
	fake := &fakeSnap{resp: &snap.Response{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}}
	w := NewSnapWidget(SnapConfig{ServerKey: "SB-key"}, hub)
	w.client = fake

	intent := testIntent()
	intent.Prefill = model.GatewayPrefill{Name: "Asha Rao", Email: "asha@example.com", Phone: "999"}

	var shown Presentation
	done := make(chan WidgetResult, 1)
	go func() {
		res, err := w.Open(context.Background(), Checkout{
			SessionID: "s1",
			Intent:    intent,
			Present:   func(p Presentation) { shown = p },
		})
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return hub.Waiting("gw_123") }, time.Second, time.Millisecond)
	hub.Resolve("gw_123", success())
	res := <-done

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "snap", shown.Provider)
	assert.Equal(t, "tok", shown.Token)
	assert.Contains(t, shown.RedirectURL, "tok")

	require.NotNil(t, fake.req)
	assert.Equal(t, "gw_123", fake.req.TransactionDetails.OrderID)
	assert.Equal(t, int64(1050), fake.req.TransactionDetails.GrossAmt)
	require.NotNil(t, fake.req.CustomerDetail)
	assert.Equal(t, "Asha", fake.req.CustomerDetail.FName)
	assert.Equal(t, "Rao", fake.req.CustomerDetail.LName)
}

func TestSnapWidget_RefusesFractionalAmount(t *testing.T) {
	fake := &fakeSnap{resp: &snap.Response{Token: "tok"}}
	w := NewSnapWidget(SnapConfig{ServerKey: "SB-key"}, NewCallbackHub())
	w.client = fake

	intent := testIntent()
	intent.Amount = 105050

	_, err := w.Open(context.Background(), Checkout{SessionID: "s1", Intent: intent})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPrecondition))
	assert.Nil(t, fake.req, "no Snap transaction for a fractional amount")

	store := persist.NewPendingVerifications(persist.NewMemoryStore())
	a := newAdapter(w, &adapter.Mock{}, store)
	_, err = a.Pay(context.Background(), PayRequest{SessionID: "s1", ShopperID: "u1", Intent: intent})
	assert.True(t, errors.Is(err, model.ErrPrecondition))
}

func TestSnapWidget_LoadRequiresKey(t *testing.T) {
	w := NewSnapWidget(SnapConfig{}, NewCallbackHub())
	assert.Error(t, w.Load(context.Background()))

	w = NewSnapWidget(SnapConfig{ServerKey: "SB-key"}, NewCallbackHub())
	assert.NoError(t, w.Load(context.Background()))
	assert.NotNil(t, w.client)
}

func TestSnapNotification_Result(t *testing.T) {
	tests := []struct {
		status  string
		fraud   string
		ok      bool
		outcome Outcome
	}{
		{"settlement", "", true, OutcomeSuccess},
		{"capture", "accept", true, OutcomeSuccess},
		{"capture", "challenge", false, ""},
		{"pending", "", false, ""},
		{"deny", "", true, OutcomeDismissed},
		{"expire", "", true, OutcomeDismissed},
		{"cancel", "", true, OutcomeDismissed},
	}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fraud, func(t *testing.T) {
			n := SnapNotification{OrderID: "gw_1", TransactionID: "tx", TransactionStatus: tt.status, FraudStatus: tt.fraud}
			res, ok := n.Result()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.outcome, res.Outcome)
			if tt.outcome == OutcomeSuccess {
				assert.Equal(t, "gw_1", res.Result.GatewayOrderID)
				assert.Equal(t, "tx", res.Result.GatewayPaymentID)
			}
		})
	}
}

func TestSnapWidget_Authentic(t *testing.T) {
	w := NewSnapWidget(SnapConfig{ServerKey: "SB-key"}, NewCallbackHub())
	sum := sha512.Sum512([]byte("gw_1" + "200" + "1050.00" + "SB-key"))

	n := SnapNotification{OrderID: "gw_1", StatusCode: "200", GrossAmount: "1050.00", SignatureKey: hex.EncodeToString(sum[:])}
	assert.True(t, w.Authentic(n))

	n.GrossAmount = "1.00"
	assert.False(t, w.Authentic(n))
}
