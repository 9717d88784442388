package payment

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/queue"
)

// BookingAPI is the slice of the external client the reconciler needs.
type BookingAPI interface {
	ReserveBooking(ctx context.Context, p bookingapi.ReserveParams) error
	CancelBooking(ctx context.Context, p bookingapi.CancelParams) error
}

// OrderStore updates the local order record keyed by reference number
// (the gateway order ID doubles as the booking reference).
type OrderStore interface {
	MarkPaid(ctx context.Context, referenceNo, transactionNo string) error
	MarkFailed(ctx context.Context, referenceNo, transactionNo string) error
}

// PaymentLogStore records every callback for back-office auditing.
type PaymentLogStore interface {
	Insert(ctx context.Context, l model.PaymentLog) error
}

// SessionFinisher drops the booking session once its payment settled.
type SessionFinisher interface {
	Finish(ctx context.Context, id string)
}

// Publisher emits reconciliation events to the broker.
type Publisher interface {
	PublishPaymentReconciled(ctx context.Context, ev queue.PaymentReconciledEvent) error
}

// Reconciler processes gateway return callbacks.  Every bookkeeping
// step is best-effort: the customer is always redirected to a result
// page even when the external booking call or the database update
// failed, and those failures are logged instead of surfaced.
type Reconciler struct {
	gateway  GatewayConfig
	api      BookingAPI
	orders   OrderStore
	logs     PaymentLogStore
	stash    DetailStash
	sessions SessionFinisher
	pub      Publisher
	now      func() time.Time
}

// NewReconciler wires the reconciliation pipeline.  logs, sessions and
// pub may be nil; the corresponding steps are skipped.
func NewReconciler(gateway GatewayConfig, api BookingAPI, orders OrderStore, logs PaymentLogStore, stash DetailStash, sessions SessionFinisher, pub Publisher) *Reconciler {
	return &Reconciler{
		gateway:  gateway,
		api:      api,
		orders:   orders,
		logs:     logs,
		stash:    stash,
		sessions: sessions,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Outcome is the result of reconciling one callback.  RedirectURL is
// always set; the handler's only job is to 303 the customer there.
type Outcome struct {
	Paid        bool
	RedirectURL string
}

// HandleReturn reconciles one gateway callback.  Signature-invalid
// requests are rejected without touching the external booking.  Valid
// callbacks reserve or cancel the booking upstream, update the local
// order and publish a reconciliation event, all best-effort.
func (r *Reconciler) HandleReturn(ctx context.Context, f ReturnFields) Outcome {
	valid := r.gateway.VerifySKey(f)
	r.logCallback(ctx, f, valid)

	if !valid {
		log.Printf("payment %s: signature verification failed", f.OrderID)
		return Outcome{RedirectURL: r.failedURL(f, "invalid_signature", "signature verification failed")}
	}

	details := r.resolveDetails(ctx, f)
	paid := f.Status == "00"

	if paid {
		r.reserve(ctx, f, details)
		if err := r.orders.MarkPaid(ctx, f.OrderID, f.TranID); err != nil {
			log.Printf("payment %s: marking order paid failed: %v", f.OrderID, err)
		}
	} else {
		r.cancel(ctx, f, details)
		if err := r.orders.MarkFailed(ctx, f.OrderID, f.TranID); err != nil {
			log.Printf("payment %s: marking order failed failed: %v", f.OrderID, err)
		}
	}

	r.publish(ctx, f, details, paid)
	if paid && r.sessions != nil && details.SessionID != "" {
		r.sessions.Finish(ctx, details.SessionID)
	}

	if paid {
		q := url.Values{}
		q.Set("orderid", f.OrderID)
		q.Set("tranID", f.TranID)
		q.Set("amount", f.Amount)
		return Outcome{Paid: true, RedirectURL: r.gateway.SuccessURL + "?" + q.Encode()}
	}
	return Outcome{RedirectURL: r.failedURL(f, f.ErrorCode, f.ErrorDesc)}
}

// resolveDetails walks the booking-detail fallback chain: values in the
// callback payload, then the server-side stash keyed by order ID, then
// the returnUrl query string, and finally the order ID itself for the
// reference number.  The stash is read unconditionally: it is the only
// source of the session ID, which must be recovered even when the
// payload already carries the full booking details — otherwise a paid
// session would outlive its own settlement.
func (r *Reconciler) resolveDetails(ctx context.Context, f ReturnFields) CheckoutDetails {
	d := CheckoutDetails{
		CinemaID:    f.CinemaID,
		ShowID:      f.ShowID,
		ReferenceNo: f.ReferenceNo,
	}
	if stashed, err := r.stash.Get(ctx, f.OrderID); err == nil {
		fill(&d.SessionID, stashed.SessionID)
		fill(&d.CinemaID, stashed.CinemaID)
		fill(&d.ShowID, stashed.ShowID)
		fill(&d.ReferenceNo, stashed.ReferenceNo)
		fill(&d.MembershipID, stashed.MembershipID)
	} else if !errors.Is(err, ErrStashMiss) {
		log.Printf("payment %s: reading checkout stash failed: %v", f.OrderID, err)
	}
	if (d.CinemaID == "" || d.ShowID == "" || d.ReferenceNo == "") && f.ReturnURL != "" {
		if u, err := url.Parse(f.ReturnURL); err == nil {
			q := u.Query()
			fill(&d.CinemaID, q.Get("cinemaId"))
			fill(&d.ShowID, q.Get("showId"))
			fill(&d.ReferenceNo, q.Get("referenceNo"))
		}
	}
	fill(&d.ReferenceNo, f.OrderID)
	return d
}

func (r *Reconciler) reserve(ctx context.Context, f ReturnFields, d CheckoutDetails) {
	if d.CinemaID == "" || d.ShowID == "" || d.ReferenceNo == "" {
		log.Printf("payment %s: booking details unresolved after all fallbacks, skipping reserve", f.OrderID)
		return
	}
	err := r.api.ReserveBooking(ctx, bookingapi.ReserveParams{
		CinemaID:      d.CinemaID,
		ShowID:        d.ShowID,
		ReferenceNo:   d.ReferenceNo,
		MembershipID:  d.MembershipID,
		TransactionNo: f.TranID,
		CardType:      f.Channel,
		AuthorizeID:   f.AppCode,
		Remarks:       "payment approved",
	})
	if err != nil {
		log.Printf("payment %s: reserve booking failed: %v", f.OrderID, err)
	}
}

func (r *Reconciler) cancel(ctx context.Context, f ReturnFields, d CheckoutDetails) {
	if d.CinemaID == "" || d.ShowID == "" || d.ReferenceNo == "" {
		log.Printf("payment %s: booking details unresolved after all fallbacks, skipping cancel", f.OrderID)
		return
	}
	err := r.api.CancelBooking(ctx, bookingapi.CancelParams{
		CinemaID:      d.CinemaID,
		ShowID:        d.ShowID,
		ReferenceNo:   d.ReferenceNo,
		TransactionNo: f.TranID,
		CardType:      f.Channel,
		Remarks:       "payment failed: " + f.ErrorCode,
	})
	if err != nil {
		log.Printf("payment %s: cancel booking failed: %v", f.OrderID, err)
	}
}

func (r *Reconciler) logCallback(ctx context.Context, f ReturnFields, valid bool) {
	if r.logs == nil {
		return
	}
	err := r.logs.Insert(ctx, model.PaymentLog{
		OrderID:   f.OrderID,
		TranID:    f.TranID,
		Status:    f.Status,
		Amount:    f.Amount,
		Currency:  f.Currency,
		Channel:   f.Channel,
		ErrorCode: f.ErrorCode,
		ErrorDesc: f.ErrorDesc,
		SKeyValid: valid,
		PayDate:   f.PayDate,
	})
	if err != nil {
		log.Printf("payment %s: writing payment log failed: %v", f.OrderID, err)
	}
}

func (r *Reconciler) publish(ctx context.Context, f ReturnFields, d CheckoutDetails, paid bool) {
	if r.pub == nil {
		return
	}
	outcome := "FAILED"
	if paid {
		outcome = "PAID"
	}
	err := r.pub.PublishPaymentReconciled(ctx, queue.PaymentReconciledEvent{
		OrderID:       f.OrderID,
		ReferenceNo:   d.ReferenceNo,
		TransactionNo: f.TranID,
		StatusCode:    f.Status,
		Outcome:       outcome,
		Amount:        f.Amount,
		Currency:      f.Currency,
		Channel:       f.Channel,
		ErrorCode:     f.ErrorCode,
		ErrorDesc:     f.ErrorDesc,
		CinemaID:      d.CinemaID,
		ShowID:        d.ShowID,
		ReconciledAt:  r.now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("payment %s: publishing reconciliation event failed: %v", f.OrderID, err)
	}
}

func (r *Reconciler) failedURL(f ReturnFields, code, desc string) string {
	q := url.Values{}
	q.Set("orderid", f.OrderID)
	if code != "" {
		q.Set("error", code)
	}
	if desc != "" {
		q.Set("error_desc", desc)
	}
	return r.gateway.FailedURL + "?" + q.Encode()
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
