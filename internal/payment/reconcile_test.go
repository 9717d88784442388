package payment

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/queue"
)

type fakeBookingAPI struct {
	reserved  []bookingapi.ReserveParams
	cancelled []bookingapi.CancelParams
}

func (f *fakeBookingAPI) ReserveBooking(_ context.Context, p bookingapi.ReserveParams) error {
	f.reserved = append(f.reserved, p)
	return nil
}

func (f *fakeBookingAPI) CancelBooking(_ context.Context, p bookingapi.CancelParams) error {
	f.cancelled = append(f.cancelled, p)
	return nil
}

type fakeOrders struct {
	paid   []string
	failed []string
}

func (f *fakeOrders) MarkPaid(_ context.Context, ref, tran string) error {
	f.paid = append(f.paid, ref+"/"+tran)
	return nil
}

func (f *fakeOrders) MarkFailed(_ context.Context, ref, tran string) error {
	f.failed = append(f.failed, ref+"/"+tran)
	return nil
}

type fakeLogs struct {
	entries []model.PaymentLog
}

func (f *fakeLogs) Insert(_ context.Context, l model.PaymentLog) error {
	f.entries = append(f.entries, l)
	return nil
}

type fakeStash struct {
	details map[string]CheckoutDetails
}

func (f *fakeStash) Put(_ context.Context, orderID string, d CheckoutDetails) error {
	if f.details == nil {
		f.details = map[string]CheckoutDetails{}
	}
	f.details[orderID] = d
	return nil
}

func (f *fakeStash) Get(_ context.Context, orderID string) (*CheckoutDetails, error) {
	d, ok := f.details[orderID]
	if !ok {
		return nil, ErrStashMiss
	}
	return &d, nil
}

type fakeFinisher struct {
	finished []string
}

func (f *fakeFinisher) Finish(_ context.Context, id string) {
	f.finished = append(f.finished, id)
}

type fakePublisher struct {
	events []queue.PaymentReconciledEvent
}

func (f *fakePublisher) PublishPaymentReconciled(_ context.Context, ev queue.PaymentReconciledEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fixture struct {
	rec      *Reconciler
	api      *fakeBookingAPI
	orders   *fakeOrders
	logs     *fakeLogs
	stash    *fakeStash
	finisher *fakeFinisher
	pub      *fakePublisher
	gateway  GatewayConfig
}

func newFixture() *fixture {
	f := &fixture{
		api:      &fakeBookingAPI{},
		orders:   &fakeOrders{},
		logs:     &fakeLogs{},
		stash:    &fakeStash{},
		finisher: &fakeFinisher{},
		pub:      &fakePublisher{},
		gateway: GatewayConfig{
			MerchantID: "merchant01",
			VerifyKey:  "vk123",
			SuccessURL: "https://shop.example/payment/success",
			FailedURL:  "https://shop.example/payment/failed",
		},
	}
	f.rec = NewReconciler(f.gateway, f.api, f.orders, f.logs, f.stash, f.finisher, f.pub)
	return f
}

func signedReturn(g GatewayConfig, status string) ReturnFields {
	f := ReturnFields{
		Amount:    "45.00",
		OrderID:   "REF123",
		TranID:    "T100",
		Domain:    "merchant01",
		Status:    status,
		AppCode:   "AP1",
		PayDate:   "2026-03-14 12:00:00",
		Currency:  "MYR",
		Channel:   "creditAN",
		ErrorCode: "",
	}
	if status != "00" {
		f.ErrorCode = "card_declined"
		f.ErrorDesc = "declined by issuer"
	}
	f.SKey = g.SignReturn(f)
	return f
}

func TestHandleReturnInvalidSignature(t *testing.T) {
	fx := newFixture()
	f := signedReturn(fx.gateway, "00")
	f.SKey = "deadbeef"

	out := fx.rec.HandleReturn(context.Background(), f)

	assert.False(t, out.Paid)
	assert.True(t, strings.HasPrefix(out.RedirectURL, fx.gateway.FailedURL))
	assert.Contains(t, out.RedirectURL, "error=invalid_signature")

	// No booking or order mutation on a forged callback.
	assert.Empty(t, fx.api.reserved)
	assert.Empty(t, fx.api.cancelled)
	assert.Empty(t, fx.orders.paid)
	assert.Empty(t, fx.orders.failed)
	assert.Empty(t, fx.pub.events)

	// The attempt is still logged for auditing, marked invalid.
	require.Len(t, fx.logs.entries, 1)
	assert.False(t, fx.logs.entries[0].SKeyValid)
}

func TestHandleReturnPaid(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.stash.Put(context.Background(), "REF123", CheckoutDetails{
		SessionID:   "sess1",
		CinemaID:    "C1",
		ShowID:      "S1",
		ReferenceNo: "REF123",
	}))

	out := fx.rec.HandleReturn(context.Background(), signedReturn(fx.gateway, "00"))

	assert.True(t, out.Paid)
	u, err := url.Parse(out.RedirectURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.RedirectURL, fx.gateway.SuccessURL))
	assert.Equal(t, "REF123", u.Query().Get("orderid"))
	assert.Equal(t, "T100", u.Query().Get("tranID"))

	require.Len(t, fx.api.reserved, 1, "exactly one reserve per settled payment")
	assert.Equal(t, "C1", fx.api.reserved[0].CinemaID)
	assert.Equal(t, "REF123", fx.api.reserved[0].ReferenceNo)
	assert.Equal(t, "T100", fx.api.reserved[0].TransactionNo)
	assert.Empty(t, fx.api.cancelled)

	assert.Equal(t, []string{"REF123/T100"}, fx.orders.paid)
	assert.Empty(t, fx.orders.failed)

	require.Len(t, fx.pub.events, 1)
	assert.Equal(t, "PAID", fx.pub.events[0].Outcome)
	assert.Equal(t, "REF123", fx.pub.events[0].ReferenceNo)

	assert.Equal(t, []string{"sess1"}, fx.finisher.finished, "settled payment closes the session")

	require.Len(t, fx.logs.entries, 1)
	assert.True(t, fx.logs.entries[0].SKeyValid)
}

func TestHandleReturnFailedPayment(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.stash.Put(context.Background(), "REF123", CheckoutDetails{
		SessionID:   "sess1",
		CinemaID:    "C1",
		ShowID:      "S1",
		ReferenceNo: "REF123",
	}))

	out := fx.rec.HandleReturn(context.Background(), signedReturn(fx.gateway, "11"))

	assert.False(t, out.Paid)
	assert.True(t, strings.HasPrefix(out.RedirectURL, fx.gateway.FailedURL))
	assert.Contains(t, out.RedirectURL, "error=card_declined")

	require.Len(t, fx.api.cancelled, 1)
	assert.Equal(t, "REF123", fx.api.cancelled[0].ReferenceNo)
	assert.Empty(t, fx.api.reserved)

	assert.Equal(t, []string{"REF123/T100"}, fx.orders.failed)
	assert.Empty(t, fx.orders.paid)

	require.Len(t, fx.pub.events, 1)
	assert.Equal(t, "FAILED", fx.pub.events[0].Outcome)

	assert.Empty(t, fx.finisher.finished, "failed payment keeps the session for retry")
}

func TestHandleReturnFinishesSessionWithPayloadDetails(t *testing.T) {
	// Even when the callback carries the full booking details, the
	// session ID only lives in the stash; a settled payment must still
	// drop the session or the janitor will later release a paid hold.
	fx := newFixture()
	require.NoError(t, fx.stash.Put(context.Background(), "REF123", CheckoutDetails{
		SessionID:   "sess1",
		CinemaID:    "C1",
		ShowID:      "S1",
		ReferenceNo: "REF123",
	}))

	f := signedReturn(fx.gateway, "00")
	f.CinemaID, f.ShowID, f.ReferenceNo = "C9", "S9", "R9"
	out := fx.rec.HandleReturn(context.Background(), f)

	assert.True(t, out.Paid)
	require.Len(t, fx.api.reserved, 1)
	assert.Equal(t, "C9", fx.api.reserved[0].CinemaID, "payload details still win over the stash")
	assert.Equal(t, []string{"sess1"}, fx.finisher.finished)
}

func TestHandleReturnDetailFallbacks(t *testing.T) {
	// Details in the payload win over the stash.
	fx := newFixture()
	f := signedReturn(fx.gateway, "00")
	f.CinemaID, f.ShowID, f.ReferenceNo = "C9", "S9", "R9"
	fx.rec.HandleReturn(context.Background(), f)
	require.Len(t, fx.api.reserved, 1)
	assert.Equal(t, "C9", fx.api.reserved[0].CinemaID)
	assert.Equal(t, "R9", fx.api.reserved[0].ReferenceNo)

	// Next fallback: the returnUrl query string.
	fx = newFixture()
	f = signedReturn(fx.gateway, "00")
	f.ReturnURL = "https://shop.example/payment/return?cinemaId=C2&showId=S2&referenceNo=R2"
	fx.rec.HandleReturn(context.Background(), f)
	require.Len(t, fx.api.reserved, 1)
	assert.Equal(t, "C2", fx.api.reserved[0].CinemaID)
	assert.Equal(t, "R2", fx.api.reserved[0].ReferenceNo)

	// With nothing resolvable, reserve is skipped but the order is
	// still settled and the event still published.
	fx = newFixture()
	fx.rec.HandleReturn(context.Background(), signedReturn(fx.gateway, "00"))
	assert.Empty(t, fx.api.reserved)
	assert.Equal(t, []string{"REF123/T100"}, fx.orders.paid)
	require.Len(t, fx.pub.events, 1)
	// The order ID still backfills the reference number.
	assert.Equal(t, "REF123", fx.pub.events[0].ReferenceNo)
}

func TestHandleReturnNilOptionalDependencies(t *testing.T) {
	fx := newFixture()
	rec := NewReconciler(fx.gateway, fx.api, fx.orders, nil, fx.stash, nil, nil)
	out := rec.HandleReturn(context.Background(), signedReturn(fx.gateway, "00"))
	assert.True(t, out.Paid, "missing log/session/publisher wiring must not break reconciliation")
}
