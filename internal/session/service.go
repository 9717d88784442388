package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/ticketing"
)

// Sentinel errors surfaced to handlers.
var (
	ErrWrongStage          = errors.New("session: operation not valid at this stage")
	ErrTimerExpired        = errors.New("session: timer expired")
	ErrSelectionIncomplete = errors.New("session: selected seats do not match requested tickets")
	ErrNoTickets           = errors.New("session: no tickets selected")
	ErrUnknownTicketType   = errors.New("session: unknown ticket type")
	ErrTooManyTickets      = errors.New("session: selection exceeds the per-transaction limit")
	ErrInvalidMembership   = errors.New("session: membership number is not valid")
)

// AckRequiredError lists restricted ticket categories the customer
// still has to acknowledge before the selection can commit.
type AckRequiredError struct {
	Categories []string
}

func (e *AckRequiredError) Error() string {
	return "session: categories require acknowledgement: " + strings.Join(e.Categories, ", ")
}

// ConfirmRejectedError wraps a body-level rejection of the confirm
// call.  The workflow stays in Locked and nothing is persisted.
type ConfirmRejectedError struct {
	Remarks string
}

func (e *ConfirmRejectedError) Error() string {
	if e.Remarks == "" {
		return "session: confirmation rejected by booking api"
	}
	return "session: confirmation rejected: " + e.Remarks
}

// FormError reports an invalid customer form field.
type FormError struct {
	Field string
}

func (e *FormError) Error() string { return "session: invalid or missing field: " + e.Field }

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// BookingAPI is the slice of the external client the session workflow
// depends on.  *bookingapi.Client satisfies it; tests substitute fakes.
type BookingAPI interface {
	GetConfigAndTicketPrice(ctx context.Context, cinemaID, showID string) (*model.ShowConfig, error)
	GetSeatLayout(ctx context.Context, cinemaID, showID string) ([]model.Seat, error)
	LockSeats(ctx context.Context, cinemaID, showID string, lockType int, seats []bookingapi.SeatPrice) (*bookingapi.LockResult, error)
	ConfirmLockedSeats(ctx context.Context, p bookingapi.ConfirmParams) (*bookingapi.ConfirmResult, error)
	ReleaseLockedSeats(ctx context.Context, cinemaID, showID, referenceNo string) error
	ReleaseConfirmedLockedSeats(ctx context.Context, cinemaID, showID, referenceNo string) error
	IsValidMember(ctx context.Context, membershipNo string) (*bookingapi.Member, error)
}

// Service orchestrates the booking workflow against the external API
// and the session store.  All state transitions funnel through the
// Reduce function in state.go.
type Service struct {
	store         Store
	api           BookingAPI
	twinOverrides map[int]bool
	now           func() time.Time
}

// NewService wires the workflow.  twinOverrides carries the
// venue-specific ticket type IDs that must always count as twin stock.
func NewService(store Store, api BookingAPI, twinOverrides map[int]bool) *Service {
	return &Service{
		store:         store,
		api:           api,
		twinOverrides: twinOverrides,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a fresh booking session for a show.  The show's booking
// rules and price list are snapshotted into the session so every later
// step works from one consistent view, and the 5-minute selection
// timer starts immediately.
func (s *Service) Create(ctx context.Context, cinemaID, showID, movieID string) (*BookingSession, error) {
	cfg, err := s.api.GetConfigAndTicketPrice(ctx, cinemaID, showID)
	if err != nil {
		return nil, err
	}
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &BookingSession{
		ID:                 id,
		CinemaID:           cinemaID,
		ShowID:             showID,
		MovieID:            movieID,
		State:              StateIdle,
		MaxTickets:         cfg.MaxTicketsPerTransaction,
		Prices:             cfg.Prices,
		SelectedTickets:    model.SelectedTickets{},
		SelectionStartedAt: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session for display.  Expired sessions are swept on read:
// an expired lock triggers the stage-correct release, an expired
// selection timer simply drops the session.
func (s *Service) Get(ctx context.Context, id string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.expireIfNeeded(ctx, sess) {
		return nil, ErrTimerExpired
	}
	return sess, nil
}

// SetTickets commits the customer's ticket-type selection.  Restricted
// categories must be acknowledged explicitly or the call fails with
// the outstanding list.  Committing a selection re-arms the selection
// timer and clears any previously chosen seats, since the pools they
// were admitted under may no longer exist.
func (s *Service) SetTickets(ctx context.Context, id string, selected model.SelectedTickets, acks []string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != StateIdle {
		return nil, ErrWrongStage
	}

	total := 0
	for ticketTypeID, n := range selected {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count for type %d", ErrUnknownTicketType, ticketTypeID)
		}
		if !hasTicketType(sess.Prices, ticketTypeID) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTicketType, ticketTypeID)
		}
		total += n
	}
	if total == 0 {
		return nil, ErrNoTickets
	}
	units := ticketing.TotalSeatUnits(selected, sess.Prices, s.twinOverrides)
	if units > sess.MaxTickets {
		return nil, ErrTooManyTickets
	}
	if missing := ticketing.UnacknowledgedCategories(selected, sess.Prices, s.twinOverrides, acks); len(missing) > 0 {
		return nil, &AckRequiredError{Categories: missing}
	}

	now := s.now()
	sess.SelectedTickets = selected
	sess.SelectedSeats = nil
	sess.SelectionStartedAt = now // fresh timer for the seat-selection step
	sess.UpdatedAt = now
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ToggleSeat selects or deselects one seat (twin seats toggle as a
// pair).  Selection honours the per-category pools sized by the ticket
// selection; deselection is always allowed.
func (s *Service) ToggleSeat(ctx context.Context, id, seatNo string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != StateIdle {
		return nil, ErrWrongStage
	}
	if s.expireIfNeeded(ctx, sess) {
		return nil, ErrTimerExpired
	}
	layout, err := s.api.GetSeatLayout(ctx, sess.CinemaID, sess.ShowID)
	if err != nil {
		return nil, err
	}
	pools := ticketing.SeatPoolCapacities(sess.SelectedTickets, sess.Prices, s.twinOverrides)
	maxUnits := sess.RequiredSeatUnits(s.twinOverrides)
	selection, err := ticketing.ToggleSeat(layout, sess.SelectedSeats, seatNo, pools, maxUnits)
	if err != nil {
		return nil, err
	}
	sess.SelectedSeats = selection
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lock places the external hold.  It requires the selection to cover
// exactly the requested seat units, maps every seat to its price row
// and on success starts the 120-second lock timer.  On failure the
// session drops back to Idle untouched; no partial lock is assumed.
func (s *Service) Lock(ctx context.Context, id string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.expireIfNeeded(ctx, sess) {
		return nil, ErrTimerExpired
	}
	required := sess.RequiredSeatUnits(s.twinOverrides)
	if required == 0 {
		return nil, ErrNoTickets
	}
	if len(sess.SelectedSeats) != required {
		return nil, ErrSelectionIncomplete
	}
	if err := s.transition(sess, EventLockRequested); err != nil {
		return nil, err
	}

	assignment := ticketing.AssignSeats(sess.SelectedSeats, sess.SelectedTickets, sess.Prices, s.twinOverrides)
	if assignment.FallbackUsed {
		log.Printf("session %s: price fallback used while building lock payload", sess.ID)
	}
	payload := make([]bookingapi.SeatPrice, 0, len(assignment.Assignments))
	for _, a := range assignment.Assignments {
		payload = append(payload, bookingapi.SeatPrice{SeatID: a.SeatID, PriceID: a.PriceID})
	}

	res, err := s.api.LockSeats(ctx, sess.CinemaID, sess.ShowID, 0, payload)
	if err != nil {
		if terr := s.transition(sess, EventLockFailed); terr == nil {
			_ = s.store.Save(ctx, sess)
		}
		return nil, err
	}

	now := s.now()
	sess.ReferenceNo = res.ReferenceNo
	sess.LockedSeats = res.LockedSeats
	sess.LockStartedAt = &now
	sess.UpdatedAt = now
	if err := s.transition(sess, EventLockSucceeded); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Confirm validates the customer form and confirms the hold upstream.
// A body-level rejection (remarks "Failed" or id 0) keeps the session
// in Locked and persists nothing.  On success the confirmed reference
// is stored; the lock clock keeps running from the original lock
// moment.
func (s *Service) Confirm(ctx context.Context, id string, customer Customer, paymentVia string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.expireIfNeeded(ctx, sess) {
		return nil, ErrTimerExpired
	}
	// Stage check first: a session that cannot confirm must not cost a
	// membership round trip upstream.
	if _, err := Reduce(sess.State, EventConfirmRequested); err != nil {
		return nil, err
	}
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}
	if customer.MembershipID != "" {
		member, err := s.api.IsValidMember(ctx, customer.MembershipID)
		if err != nil {
			return nil, err
		}
		if !member.Valid {
			return nil, ErrInvalidMembership
		}
	}
	if err := s.transition(sess, EventConfirmRequested); err != nil {
		return nil, err
	}

	res, err := s.api.ConfirmLockedSeats(ctx, bookingapi.ConfirmParams{
		ShowID:       sess.ShowID,
		ReferenceNo:  sess.ReferenceNo,
		UserID:       sess.ID,
		Email:        customer.Email,
		MembershipID: customer.MembershipID,
		PaymentVia:   paymentVia,
		Name:         customer.Name,
		PassportNo:   customer.PassportNo,
		Mobile:       customer.Mobile,
	})
	if err != nil {
		if terr := s.transition(sess, EventConfirmFailed); terr == nil {
			_ = s.store.Save(ctx, sess)
		}
		return nil, err
	}
	if res.Failed() {
		if terr := s.transition(sess, EventConfirmFailed); terr == nil {
			_ = s.store.Save(ctx, sess)
		}
		return nil, &ConfirmRejectedError{Remarks: res.Remarks}
	}

	confirmedRef := res.ReferenceNo
	if confirmedRef == "" {
		confirmedRef = sess.ReferenceNo
	}
	sess.ConfirmedReferenceNo = confirmedRef
	sess.Customer = customer
	sess.UpdatedAt = s.now()
	if err := s.transition(sess, EventConfirmSucceeded); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// StartCheckout moves a confirmed session into the payment stage.
func (s *Service) StartCheckout(ctx context.Context, id string) (*BookingSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.expireIfNeeded(ctx, sess) {
		return nil, ErrTimerExpired
	}
	if err := s.transition(sess, EventCheckoutStarted); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Release drops the session and, when a hold exists, releases it
// through the stage-correct endpoint.  Release failures are swallowed:
// the external lock self-expires, so the user flow never blocks on
// them.
func (s *Service) Release(ctx context.Context, id string) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	s.releaseUpstream(ctx, sess)
	return s.store.Delete(ctx, id)
}

// Finish deletes a session after its payment settled.  Missing
// sessions are fine; the janitor or an explicit release may have beaten
// us to it.
func (s *Service) Finish(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.store.Delete(ctx, id); err != nil {
		log.Printf("session %s: delete after payment failed: %v", id, err)
	}
}

// releaseUpstream fires the stage-correct release call and logs any
// failure without propagating it.
func (s *Service) releaseUpstream(ctx context.Context, sess *BookingSession) {
	switch ReleaseStageFor(sess.State) {
	case ReleaseLocked:
		if err := s.api.ReleaseLockedSeats(ctx, sess.CinemaID, sess.ShowID, sess.ReferenceNo); err != nil {
			log.Printf("session %s: release locked seats failed (lock will self-expire): %v", sess.ID, err)
		}
	case ReleaseConfirmed:
		if err := s.api.ReleaseConfirmedLockedSeats(ctx, sess.CinemaID, sess.ShowID, sess.ConfirmedReferenceNo); err != nil {
			log.Printf("session %s: release confirmed seats failed (lock will self-expire): %v", sess.ID, err)
		}
	}
}

// expireIfNeeded sweeps a session whose active timer ran out.  It
// returns true when the session was expired and removed.
func (s *Service) expireIfNeeded(ctx context.Context, sess *BookingSession) bool {
	now := s.now()
	switch {
	case sess.LockExpired(now):
		s.releaseUpstream(ctx, sess)
	case sess.SelectionExpired(now):
		// nothing held upstream yet
	default:
		return false
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		log.Printf("session %s: delete on expiry failed: %v", sess.ID, err)
	}
	return true
}

func (s *Service) transition(sess *BookingSession, ev Event) error {
	next, err := Reduce(sess.State, ev)
	if err != nil {
		return err
	}
	sess.State = next
	return nil
}

func validateCustomer(c Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return &FormError{Field: "name"}
	}
	if !emailRx.MatchString(c.Email) {
		return &FormError{Field: "email"}
	}
	if strings.TrimSpace(c.Mobile) == "" {
		return &FormError{Field: "mobile"}
	}
	return nil
}

func hasTicketType(prices []model.TicketTypePrice, ticketTypeID int) bool {
	for _, p := range prices {
		if p.TicketTypeID == ticketTypeID {
			return true
		}
	}
	return false
}

func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
