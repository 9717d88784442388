package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/session"
	"github.com/mscinema/booking-service/internal/ticketing"
	"github.com/mscinema/booking-service/internal/utils"
)

// BookingHandler exposes the booking-session workflow: create, ticket
// selection, seat selection, lock, confirm, release.  Every route
// except creation assumes the SessionAuth middleware has put the
// session ID into the context.
type BookingHandler struct {
	Sessions  *session.Service
	JWTSecret string
	TokenTTL  int // minutes; matches the session TTL
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(sessions *session.Service, jwtSecret string, tokenTTLMin int) *BookingHandler {
	if sessions == nil {
		panic("nil session service passed to NewBookingHandler")
	}
	return &BookingHandler{Sessions: sessions, JWTSecret: jwtSecret, TokenTTL: tokenTTLMin}
}

// sessionView is the wire representation of a booking session.  Timer
// values are rendered as remaining seconds computed server-side, so
// clients never run their own clocks.
type sessionView struct {
	ID       string `json:"id"`
	CinemaID string `json:"cinemaId"`
	ShowID   string `json:"showId"`
	MovieID  string `json:"movieId"`

	State string `json:"state"`

	MaxTickets int                     `json:"maxTickets"`
	Prices     []model.TicketTypePrice `json:"prices"`

	SelectedTickets model.SelectedTickets `json:"selectedTickets"`
	SelectedSeats   []model.Seat          `json:"selectedSeats"`

	ReferenceNo          string                  `json:"referenceNo,omitempty"`
	ConfirmedReferenceNo string                  `json:"confirmedReferenceNo,omitempty"`
	LockedSeats          []model.LockedSeatPrice `json:"lockedSeats,omitempty"`

	SelectionRemainingSec int  `json:"selectionRemainingSec"`
	LockRemainingSec      int  `json:"lockRemainingSec"`
	Locked                bool `json:"locked"`
}

func viewOf(s *session.BookingSession) sessionView {
	now := time.Now().UTC()
	return sessionView{
		ID:                   s.ID,
		CinemaID:             s.CinemaID,
		ShowID:               s.ShowID,
		MovieID:              s.MovieID,
		State:                string(s.State),
		MaxTickets:           s.MaxTickets,
		Prices:               s.Prices,
		SelectedTickets:      s.SelectedTickets,
		SelectedSeats:        s.SelectedSeats,
		ReferenceNo:          s.ReferenceNo,
		ConfirmedReferenceNo: s.ConfirmedReferenceNo,
		LockedSeats:          s.LockedSeats,

		SelectionRemainingSec: int(s.SelectionRemaining(now) / time.Second),
		LockRemainingSec:      int(s.LockRemaining(now) / time.Second),
		Locked:                s.LockStartedAt != nil,
	}
}

// Create handles POST /v1/sessions.  It opens a booking session for a
// show and returns it together with the signed token that addresses it
// on every subsequent call.
func (h *BookingHandler) Create(c echo.Context) error {
	var body struct {
		CinemaID string `json:"cinemaId"`
		ShowID   string `json:"showId"`
		MovieID  string `json:"movieId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CinemaID == "" || body.ShowID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cinemaId and showId are required"})
	}
	sess, err := h.Sessions.Create(c.Request().Context(), body.CinemaID, body.ShowID, body.MovieID)
	if err != nil {
		return bookingError(c, err)
	}
	tok, err := utils.NewSessionToken(h.JWTSecret, sess.ID, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue session token"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":   tok.Token,
		"expires": tok.Exp,
		"session": viewOf(sess),
	})
}

// Get handles GET /v1/sessions.  Reading an expired session sweeps it
// and reports 410.
func (h *BookingHandler) Get(c echo.Context) error {
	sess, err := h.Sessions.Get(c.Request().Context(), sessionIDFrom(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}

// SetTickets handles PUT /v1/sessions/tickets.  Restricted categories
// must be listed in acknowledgements or the call fails with 409 and the
// outstanding list.
func (h *BookingHandler) SetTickets(c echo.Context) error {
	var body struct {
		Tickets          model.SelectedTickets `json:"tickets"`
		Acknowledgements []string              `json:"acknowledgements"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sess, err := h.Sessions.SetTickets(c.Request().Context(), sessionIDFrom(c), body.Tickets, body.Acknowledgements)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}

// ToggleSeat handles PUT /v1/sessions/seats.  The same call selects and
// deselects; twin seats always toggle as a pair.
func (h *BookingHandler) ToggleSeat(c echo.Context) error {
	var body struct {
		SeatNo string `json:"seatNo"`
	}
	if err := c.Bind(&body); err != nil || body.SeatNo == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seatNo is required"})
	}
	sess, err := h.Sessions.ToggleSeat(c.Request().Context(), sessionIDFrom(c), body.SeatNo)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}

// Lock handles POST /v1/sessions/lock.  On success the response carries
// the lock reference and the authoritative per-seat prices, and the
// 120-second lock window starts counting.
func (h *BookingHandler) Lock(c echo.Context) error {
	sess, err := h.Sessions.Lock(c.Request().Context(), sessionIDFrom(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}

// Confirm handles POST /v1/sessions/confirm.  It captures the billing
// form and confirms the held seats upstream.  A body-level rejection
// keeps the session locked and returns 409.
func (h *BookingHandler) Confirm(c echo.Context) error {
	var body struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Mobile       string `json:"mobile"`
		PassportNo   string `json:"passportNo"`
		MembershipID string `json:"membershipID"`
		PaymentVia   string `json:"paymentVia"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sess, err := h.Sessions.Confirm(c.Request().Context(), sessionIDFrom(c), session.Customer{
		Name:         body.Name,
		Email:        body.Email,
		Mobile:       body.Mobile,
		PassportNo:   body.PassportNo,
		MembershipID: body.MembershipID,
	}, body.PaymentVia)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}

// Release handles DELETE /v1/sessions.  It releases any held seats
// through the stage-correct endpoint and drops the session.  Always
// succeeds from the client's point of view.
func (h *BookingHandler) Release(c echo.Context) error {
	if err := h.Sessions.Release(c.Request().Context(), sessionIDFrom(c)); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func sessionIDFrom(c echo.Context) string {
	id, _ := c.Get("session_id").(string)
	return id
}

// bookingError maps workflow errors onto HTTP responses.  Validation
// problems are 400, stage and capacity conflicts 409, expired timers
// 410 and upstream failures 502.
func bookingError(c echo.Context, err error) error {
	var ackErr *session.AckRequiredError
	var rejErr *session.ConfirmRejectedError
	var formErr *session.FormError
	var transErr *session.IllegalTransitionError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, session.ErrTimerExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "session expired"})
	case errors.As(err, &ackErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      "acknowledgement required",
			"categories": ackErr.Categories,
		})
	case errors.As(err, &rejErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "confirmation rejected",
			"remarks": rejErr.Remarks,
		})
	case errors.As(err, &formErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or missing field", "field": formErr.Field})
	case errors.As(err, &transErr), errors.Is(err, session.ErrWrongStage):
		return c.JSON(http.StatusConflict, echo.Map{"error": "operation not valid at this stage"})
	case errors.Is(err, session.ErrNoTickets),
		errors.Is(err, session.ErrUnknownTicketType),
		errors.Is(err, session.ErrTooManyTickets),
		errors.Is(err, session.ErrSelectionIncomplete),
		errors.Is(err, session.ErrInvalidMembership):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ticketing.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	case errors.Is(err, ticketing.ErrSeatUnavailable),
		errors.Is(err, ticketing.ErrPoolExhausted),
		errors.Is(err, ticketing.ErrSelectionFull),
		errors.Is(err, ticketing.ErrPartnerMissing):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return upstreamError(c, err)
	}
}

// upstreamError renders failures of the external API as 502 so clients
// can tell them apart from our own validation errors.
func upstreamError(c echo.Context, err error) error {
	var apiErr *bookingapi.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "booking api error", "detail": apiErr.Message})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
