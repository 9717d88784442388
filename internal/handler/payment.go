package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/payment"
	"github.com/mscinema/booking-service/internal/repository"
	"github.com/mscinema/booking-service/internal/session"
)

// PaymentHandler bridges the booking session to the Fiuu gateway.  The
// checkout route snapshots the confirmed session into a PENDING order
// and hands the signed widget parameters to the client; the return
// route feeds the gateway callback into the reconciler and redirects
// the customer to the result page it picks.
type PaymentHandler struct {
	Gateway    payment.GatewayConfig
	Sessions   *session.Service
	Orders     *repository.OrderRepo
	Stash      payment.DetailStash
	Reconciler *payment.Reconciler
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(gateway payment.GatewayConfig, sessions *session.Service, orders *repository.OrderRepo, stash payment.DetailStash, rec *payment.Reconciler) *PaymentHandler {
	if sessions == nil || orders == nil || stash == nil || rec == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Gateway: gateway, Sessions: sessions, Orders: orders, Stash: stash, Reconciler: rec}
}

// Checkout handles POST /v1/payment/checkout.  The session must be
// confirmed and the customer must have accepted the terms.  The order
// amount comes from the authoritative locked-seat prices, never from a
// client-side total.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var body struct {
		Channel     string `json:"channel"`
		Description string `json:"description"`
		AcceptTerms bool   `json:"acceptTerms"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !body.AcceptTerms {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "terms must be accepted before payment"})
	}

	ctx := c.Request().Context()
	sess, err := h.Sessions.StartCheckout(ctx, sessionIDFrom(c))
	if err != nil {
		return bookingError(c, err)
	}
	if len(sess.LockedSeats) == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no locked seats on session"})
	}

	amount := 0.0
	seatNos := make([]string, 0, len(sess.LockedSeats))
	for _, ls := range sess.LockedSeats {
		amount += ls.TotalTicketPrice
		seatNos = append(seatNos, ls.SeatNo)
	}

	// The booking reference doubles as the gateway order ID so the
	// callback can always be traced back to the hold it pays for.
	orderID := sess.ActiveReferenceNo()
	order := &model.Order{
		OrderID:       orderID,
		ReferenceNo:   orderID,
		CustomerName:  sess.Customer.Name,
		CustomerEmail: sess.Customer.Email,
		CustomerPhone: sess.Customer.Mobile,
		MovieID:       sess.MovieID,
		CinemaID:      sess.CinemaID,
		ShowID:        sess.ShowID,
		Seats:         strings.Join(seatNos, ","),
		Amount:        amount,
	}
	if err := h.Orders.Create(ctx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}

	if err := h.Stash.Put(ctx, orderID, payment.CheckoutDetails{
		SessionID:    sess.ID,
		CinemaID:     sess.CinemaID,
		ShowID:       sess.ShowID,
		ReferenceNo:  orderID,
		MembershipID: sess.Customer.MembershipID,
	}); err != nil {
		// The return route still has its fallback chain, so a stash
		// failure is not fatal to the checkout.
		c.Logger().Warnf("payment %s: storing checkout details failed: %v", orderID, err)
	}

	desc := body.Description
	if desc == "" {
		desc = "Movie tickets " + strings.Join(seatNos, " ")
	}
	params := h.Gateway.BuildCheckoutParams(
		orderID,
		body.Channel,
		payment.FormatAmount(amount),
		sess.Customer.Name,
		sess.Customer.Email,
		sess.Customer.Mobile,
		desc,
	)
	return c.JSON(http.StatusOK, echo.Map{
		"orderId": orderID,
		"amount":  payment.FormatAmount(amount),
		"params":  params,
	})
}

// Return handles GET and POST /payment/return.  The gateway may either
// POST the callback form or redirect the browser with query parameters;
// both shapes feed the same reconciliation and always end in a 303 to
// the result page.
func (h *PaymentHandler) Return(c echo.Context) error {
	f := payment.ReturnFields{
		Amount:    returnParam(c, "amount"),
		OrderID:   returnParam(c, "orderid"),
		TranID:    returnParam(c, "tranID"),
		Domain:    returnParam(c, "domain"),
		Status:    returnParam(c, "status"),
		AppCode:   returnParam(c, "appcode"),
		PayDate:   returnParam(c, "paydate"),
		Currency:  returnParam(c, "currency"),
		SKey:      returnParam(c, "skey"),
		ErrorCode: returnParam(c, "error_code"),
		ErrorDesc: returnParam(c, "error_desc"),
		Channel:   returnParam(c, "channel"),

		CinemaID:    returnParam(c, "cinemaId"),
		ShowID:      returnParam(c, "showId"),
		ReferenceNo: returnParam(c, "referenceNo"),
		ReturnURL:   returnParam(c, "returnurl"),
	}
	out := h.Reconciler.HandleReturn(c.Request().Context(), f)
	return c.Redirect(http.StatusSeeOther, out.RedirectURL)
}

// GetOrder handles GET /v1/orders/:referenceNo so the result page can
// render the final order state after the redirect.
func (h *PaymentHandler) GetOrder(c echo.Context) error {
	ref := c.Param("referenceNo")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference is required"})
	}
	order, err := h.Orders.GetByReference(c.Request().Context(), ref)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"orderId":       order.OrderID,
		"referenceNo":   order.ReferenceNo,
		"paymentStatus": order.PaymentStatus,
		"status":        order.Status,
		"amount":        order.Amount,
		"seats":         order.Seats,
		"transactionNo": order.TransactionNo,
	})
}

// returnParam reads a callback field from the form body first (POST
// callbacks) and falls back to the query string (redirect callbacks).
func returnParam(c echo.Context, name string) string {
	if v := c.FormValue(name); v != "" {
		return v
	}
	return c.QueryParam(name)
}
