// Package bookingapi is the typed client for the external cinema-operations
// API.  All seat contention and lock state lives on that side; this package
// only shapes requests, coalesces duplicates and normalizes the loosely
// cased payloads into canonical structs.
package bookingapi

import (
	"fmt"

	"github.com/mscinema/booking-service/internal/model"
)

// SeatPrice is one entry of the lock payload: a seat and the price row
// assigned to it by the ticket-mapping logic.
type SeatPrice struct {
	SeatID  string `json:"seatID"`
	PriceID int    `json:"priceID"`
}

// LockResult is the normalized response of the lock endpoint.  The
// ReferenceNo identifies the temporary hold and is required by every
// later lifecycle call.  LockedSeats carries the authoritative price
// breakdown per seat.
type LockResult struct {
	ReferenceNo string
	LockedSeats []model.LockedSeatPrice
}

// ConfirmResult is the normalized response of the confirm endpoint.
// The external API signals failure through the body rather than the
// status code: remarks "Failed" or a zero id both mean the hold was
// not confirmed.
type ConfirmResult struct {
	ID          int64
	Remarks     string
	ReferenceNo string
}

// Failed reports whether the external API rejected the confirmation.
func (r ConfirmResult) Failed() bool {
	return r.Remarks == "Failed" || r.ID == 0
}

// Member is the normalized response of the membership lookup.
type Member struct {
	MemberID string
	Valid    bool
}

// ConfirmParams carries every field of the confirm call.  The external
// route encodes most of them as path segments.
type ConfirmParams struct {
	ShowID       string
	ReferenceNo  string
	UserID       string
	Email        string
	MembershipID string
	PaymentVia   string
	Name         string
	PassportNo   string
	Mobile       string
}

// ReserveParams carries the fields of the post-payment reserve call.
type ReserveParams struct {
	CinemaID      string
	ShowID        string
	ReferenceNo   string
	MembershipID  string
	TransactionNo string
	CardType      string
	AuthorizeID   string
	Remarks       string
}

// CancelParams carries the fields of the post-payment cancel call.
type CancelParams struct {
	CinemaID      string
	ShowID        string
	ReferenceNo   string
	TransactionNo string
	CardType      string
	Remarks       string
}

// APIError is returned for any non-2xx response from the external API.
// Message is pulled from the response body when the body carries one,
// otherwise a generic per-status message is used.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("booking api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("booking api: request failed with status %d", e.Status)
}
