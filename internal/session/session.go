package session

import (
	"time"

	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/ticketing"
)

// Timer durations.  The selection timer runs from ticket selection
// until a lock is placed; the lock timer runs from the moment seats
// are locked upstream and is never re-armed by later steps.
const (
	SelectionTimerDuration = 5 * time.Minute
	LockTimerDuration      = 120 * time.Second
)

// Customer is the billing form captured before confirmation.
type Customer struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	PassportNo   string `json:"passportNo,omitempty"`
	MembershipID string `json:"membershipID,omitempty"`
}

// BookingSession is the complete server-side state of one booking
// attempt, stored as a single JSON document in Redis and addressed by
// a signed session token.  All timers are wall-clock timestamps so the
// remaining time is identical no matter how often, or from where, the
// session is read.
type BookingSession struct {
	ID       string `json:"id"`
	CinemaID string `json:"cinemaId"`
	ShowID   string `json:"showId"`
	MovieID  string `json:"movieId"`

	State State `json:"state"`

	// Snapshot of the show's booking rules and price list, taken at
	// session creation so every later computation uses one consistent
	// view.
	MaxTickets int                     `json:"maxTickets"`
	Prices     []model.TicketTypePrice `json:"prices"`

	SelectedTickets model.SelectedTickets `json:"selectedTickets"`
	SelectedSeats   []model.Seat          `json:"selectedSeats"`

	// Set by a successful lock.  LockedSeats is the authoritative
	// per-seat price breakdown returned by the external API and, when
	// present, supersedes the client-side estimate.
	ReferenceNo          string                  `json:"referenceNo,omitempty"`
	ConfirmedReferenceNo string                  `json:"confirmedReferenceNo,omitempty"`
	LockedSeats          []model.LockedSeatPrice `json:"lockedSeats,omitempty"`

	Customer Customer `json:"customer"`

	SelectionStartedAt time.Time  `json:"selectionStartedAt"`
	LockStartedAt      *time.Time `json:"lockStartedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SelectionRemaining returns how much of the selection timer is left at
// the given instant, floored at zero.
func (s *BookingSession) SelectionRemaining(now time.Time) time.Duration {
	return remaining(s.SelectionStartedAt, SelectionTimerDuration, now)
}

// LockRemaining returns how much of the 120-second lock timer is left
// at the given instant.  Before any lock it returns zero.
func (s *BookingSession) LockRemaining(now time.Time) time.Duration {
	if s.LockStartedAt == nil {
		return 0
	}
	return remaining(*s.LockStartedAt, LockTimerDuration, now)
}

// LockExpired reports whether a lock exists and its timer has run out.
func (s *BookingSession) LockExpired(now time.Time) bool {
	return s.LockStartedAt != nil && s.LockRemaining(now) <= 0
}

// SelectionExpired reports whether the pre-lock selection timer has run
// out.  Only meaningful while no lock is held.
func (s *BookingSession) SelectionExpired(now time.Time) bool {
	return s.LockStartedAt == nil && remaining(s.SelectionStartedAt, SelectionTimerDuration, now) <= 0
}

func remaining(start time.Time, d time.Duration, now time.Time) time.Duration {
	left := d - now.Sub(start)
	if left < 0 {
		return 0
	}
	return left
}

// RequiredSeatUnits is the number of physical seats the current ticket
// selection calls for (twin units count double).
func (s *BookingSession) RequiredSeatUnits(twinOverrides map[int]bool) int {
	return ticketing.TotalSeatUnits(s.SelectedTickets, s.Prices, twinOverrides)
}

// ActiveReferenceNo returns the reference the payment flow should use:
// the confirmed reference when present, the lock reference otherwise.
func (s *BookingSession) ActiveReferenceNo() string {
	if s.ConfirmedReferenceNo != "" {
		return s.ConfirmedReferenceNo
	}
	return s.ReferenceNo
}
