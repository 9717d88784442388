package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/payment"
)

type recordingAPI struct {
	reserved  int
	cancelled int
}

func (r *recordingAPI) ReserveBooking(context.Context, bookingapi.ReserveParams) error {
	r.reserved++
	return nil
}

func (r *recordingAPI) CancelBooking(context.Context, bookingapi.CancelParams) error {
	r.cancelled++
	return nil
}

type recordingOrders struct {
	paid   int
	failed int
}

func (r *recordingOrders) MarkPaid(context.Context, string, string) error {
	r.paid++
	return nil
}

func (r *recordingOrders) MarkFailed(context.Context, string, string) error {
	r.failed++
	return nil
}

type emptyStash struct{}

func (emptyStash) Put(context.Context, string, payment.CheckoutDetails) error { return nil }
func (emptyStash) Get(context.Context, string) (*payment.CheckoutDetails, error) {
	return nil, payment.ErrStashMiss
}

func newReturnFixture() (*PaymentHandler, *recordingAPI, *recordingOrders, payment.GatewayConfig) {
	gateway := payment.GatewayConfig{
		MerchantID: "merchant01",
		VerifyKey:  "vk123",
		SuccessURL: "https://shop.example/payment/success",
		FailedURL:  "https://shop.example/payment/failed",
	}
	api := &recordingAPI{}
	orders := &recordingOrders{}
	rec := payment.NewReconciler(gateway, api, orders, nil, emptyStash{}, nil, nil)
	h := &PaymentHandler{Gateway: gateway, Reconciler: rec}
	return h, api, orders, gateway
}

func signedForm(g payment.GatewayConfig, status string) url.Values {
	f := payment.ReturnFields{
		Amount:   "45.00",
		OrderID:  "REF123",
		TranID:   "T100",
		Domain:   "merchant01",
		Status:   status,
		AppCode:  "AP1",
		PayDate:  "2026-03-14 12:00:00",
		Currency: "MYR",
		Channel:  "creditAN",

		CinemaID:    "C1",
		ShowID:      "S1",
		ReferenceNo: "REF123",
	}
	v := url.Values{}
	v.Set("amount", f.Amount)
	v.Set("orderid", f.OrderID)
	v.Set("tranID", f.TranID)
	v.Set("domain", f.Domain)
	v.Set("status", f.Status)
	v.Set("appcode", f.AppCode)
	v.Set("paydate", f.PayDate)
	v.Set("currency", f.Currency)
	v.Set("channel", f.Channel)
	v.Set("cinemaId", f.CinemaID)
	v.Set("showId", f.ShowID)
	v.Set("referenceNo", f.ReferenceNo)
	v.Set("skey", g.SignReturn(f))
	return v
}

func postReturn(h *PaymentHandler, form url.Values) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payment/return", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return rec, h.Return(e.NewContext(req, rec))
}

func TestReturnPaidRedirectsToSuccess(t *testing.T) {
	h, api, orders, gateway := newReturnFixture()
	rec, err := postReturn(h, signedForm(gateway, "00"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, gateway.SuccessURL))
	assert.Contains(t, loc, "orderid=REF123")

	assert.Equal(t, 1, api.reserved)
	assert.Equal(t, 0, api.cancelled)
	assert.Equal(t, 1, orders.paid)
}

func TestReturnFailedRedirectsToFailure(t *testing.T) {
	h, api, orders, gateway := newReturnFixture()
	rec, err := postReturn(h, signedForm(gateway, "11"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), gateway.FailedURL))
	assert.Equal(t, 0, api.reserved)
	assert.Equal(t, 1, api.cancelled)
	assert.Equal(t, 1, orders.failed)
}

func TestReturnTamperedSignature(t *testing.T) {
	h, api, orders, gateway := newReturnFixture()
	form := signedForm(gateway, "00")
	form.Set("amount", "1.00") // break the signature

	rec, err := postReturn(h, form)
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, gateway.FailedURL))
	assert.Contains(t, loc, "error=invalid_signature")
	assert.Equal(t, 0, api.reserved, "a forged callback never reaches the booking API")
	assert.Equal(t, 0, orders.paid)
	assert.Equal(t, 0, orders.failed)
}

func TestReturnAcceptsQueryParams(t *testing.T) {
	// Redirect-style callbacks arrive as GET with query parameters.
	h, api, _, gateway := newReturnFixture()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/payment/return?"+signedForm(gateway, "00").Encode(), nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Return(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), gateway.SuccessURL))
	assert.Equal(t, 1, api.reserved)
}
