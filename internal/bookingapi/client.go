package bookingapi

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mscinema/booking-service/internal/model"
)

// Client talks to the external cinema-operations API.  One instance is
// shared by the whole service; it owns the request coalescer and the
// guest-token manager so duplicate traffic is absorbed in a single
// place instead of at ad hoc call sites.
type Client struct {
	base   string
	http   *http.Client
	tokens *TokenManager
	co     *Coalescer
}

// New returns a client for the given base URL.  tokens may be nil when
// the target API does not require authentication (tests do this).
func New(base string, tokens *TokenManager) *Client {
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
		co:     NewCoalescer(),
	}
}

// LockSeats places a temporary hold on the given seats.  Each entry
// pairs a seat with the price row assigned by the ticket mapping; the
// returned reference number identifies the hold for all later calls.
func (c *Client) LockSeats(ctx context.Context, cinemaID, showID string, lockType int, seats []SeatPrice) (*LockResult, error) {
	path := fmt.Sprintf("/Booking/LockSeats/%s/%s/%d", url.PathEscape(cinemaID), url.PathEscape(showID), lockType)
	body, err := c.do(ctx, http.MethodPost, path, seats)
	if err != nil {
		return nil, err
	}
	res, err := decodeLockResult(body)
	if err != nil {
		return nil, err
	}
	if res.ReferenceNo == "" {
		return nil, &APIError{Status: http.StatusOK, Message: "lock response carried no reference number"}
	}
	return res, nil
}

// ReleaseLockedSeats releases a hold that has not been confirmed yet.
func (c *Client) ReleaseLockedSeats(ctx context.Context, cinemaID, showID, referenceNo string) error {
	path := fmt.Sprintf("/Booking/ReleaseLockedSeats/%s/%s/%s",
		url.PathEscape(cinemaID), url.PathEscape(showID), url.PathEscape(referenceNo))
	_, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// ReleaseConfirmedLockedSeats releases a hold that was already
// confirmed.  Callers must pick this over ReleaseLockedSeats once
// confirmation has succeeded; the session state machine encodes that
// choice.
func (c *Client) ReleaseConfirmedLockedSeats(ctx context.Context, cinemaID, showID, referenceNo string) error {
	path := fmt.Sprintf("/Booking/ReleaseConfirmedLockedSeats/%s/%s/%s",
		url.PathEscape(cinemaID), url.PathEscape(showID), url.PathEscape(referenceNo))
	_, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// ConfirmLockedSeats attaches the customer to a hold.  The external
// route takes most fields as path segments and repeats the free-text
// ones as query parameters; that shape is preserved verbatim here.
// A body-level failure (remarks "Failed" or id 0) is returned as a
// ConfirmResult, not an error, so callers can distinguish transport
// failures from rejections.
func (c *Client) ConfirmLockedSeats(ctx context.Context, p ConfirmParams) (*ConfirmResult, error) {
	q := url.Values{}
	q.Set("Name", p.Name)
	q.Set("MobileNo", p.Mobile)
	q.Set("PassportNo", p.PassportNo)
	membership := p.MembershipID
	if membership == "" {
		membership = "0"
	}
	path := fmt.Sprintf("/Booking/ConfirmLockedSeats/%s/%s/%s/%s/%s/%s/Name/PassportNo/MobileNo?%s",
		url.PathEscape(p.ShowID), url.PathEscape(p.ReferenceNo), url.PathEscape(p.UserID),
		url.PathEscape(p.Email), url.PathEscape(membership), url.PathEscape(p.PaymentVia), q.Encode())
	body, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeConfirmResult(body)
}

// ReserveBooking finalizes a confirmed hold after a successful payment.
func (c *Client) ReserveBooking(ctx context.Context, p ReserveParams) error {
	q := url.Values{}
	q.Set("TransactionNo", p.TransactionNo)
	q.Set("CardType", p.CardType)
	q.Set("AuthorizeId", p.AuthorizeID)
	q.Set("Remarks", p.Remarks)
	membership := p.MembershipID
	if membership == "" {
		membership = "0"
	}
	path := fmt.Sprintf("/Booking/ReserveBooking/%s/%s/%s/%s/TransactionNo/CardType/AuthorizeId/Remarks?%s",
		url.PathEscape(p.CinemaID), url.PathEscape(p.ShowID), url.PathEscape(p.ReferenceNo),
		url.PathEscape(membership), q.Encode())
	_, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// CancelBooking voids a confirmed hold after a failed payment.
func (c *Client) CancelBooking(ctx context.Context, p CancelParams) error {
	q := url.Values{}
	q.Set("TransactionNo", p.TransactionNo)
	q.Set("CardType", p.CardType)
	q.Set("Remarks", p.Remarks)
	path := fmt.Sprintf("/Booking/CancelBooking/%s/%s/%s/TransactionNo/CardType/Remarks?%s",
		url.PathEscape(p.CinemaID), url.PathEscape(p.ShowID), url.PathEscape(p.ReferenceNo), q.Encode())
	_, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// IsValidMember checks a membership number against the loyalty system.
func (c *Client) IsValidMember(ctx context.Context, membershipNo string) (*Member, error) {
	path := "/Booking/IsValidMember/" + url.PathEscape(membershipNo)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeMember(body)
}

// GetConfigAndTicketPrice fetches the booking rules and ticket price
// list for a show.  The external route name carries a historical typo
// ("Confiq") that must be preserved.
func (c *Client) GetConfigAndTicketPrice(ctx context.Context, cinemaID, showID string) (*model.ShowConfig, error) {
	path := fmt.Sprintf("/ShowDetails/GetConfiqAndTicketPrice/%s/%s", url.PathEscape(cinemaID), url.PathEscape(showID))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeShowConfig(body)
}

// GetSeatLayout fetches the seat layout for a show with maintenance
// seats already filtered out.
func (c *Client) GetSeatLayout(ctx context.Context, cinemaID, showID string) ([]model.Seat, error) {
	path := fmt.Sprintf("/ShowDetails/GetSeatLayoutAndProperties/%s/%s", url.PathEscape(cinemaID), url.PathEscape(showID))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeSeatLayout(body)
}

// do performs one coalesced request and returns the raw response body.
// Identical concurrent requests (method + path + body) share a single
// round trip.  A 401 invalidates the guest token and retries exactly
// once with a fresh one.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
	}
	key := coalesceKey(method, path, payload)
	return c.co.Do(key, DefaultGrace, func() ([]byte, error) {
		body, err := c.roundTrip(ctx, method, path, payload)
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
			c.tokens.Invalidate()
			return c.roundTrip(ctx, method, path, payload)
		}
		return body, err
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok, err := c.tokens.Token(ctx); err != nil {
		return nil, err
	} else if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func coalesceKey(method, path string, payload []byte) string {
	sum := sha1.Sum(payload)
	return method + " " + path + " " + hex.EncodeToString(sum[:])
}
