package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/session"
)

// memStore is an in-memory session.Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*session.BookingSession
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*session.BookingSession{}}
}

func (m *memStore) Save(_ context.Context, s *session.BookingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*session.BookingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) IDs(_ context.Context) ([]string, error) { return nil, nil }

// scriptedAPI returns fixed data for the routes the handlers exercise.
type scriptedAPI struct {
	lockRes    *bookingapi.LockResult
	confirmRes *bookingapi.ConfirmResult
}

func (s *scriptedAPI) GetConfigAndTicketPrice(context.Context, string, string) (*model.ShowConfig, error) {
	return &model.ShowConfig{
		MaxTicketsPerTransaction: 6,
		Prices: []model.TicketTypePrice{
			{TicketTypeID: 1, TicketTypeName: "Adult", PriceID: 11, Price: 15, TotalTicketPrice: 17},
			{TicketTypeID: 2, TicketTypeName: "Kids", PriceID: 12, Price: 10, TotalTicketPrice: 11},
		},
	}, nil
}

func (s *scriptedAPI) GetSeatLayout(context.Context, string, string) ([]model.Seat, error) {
	return []model.Seat{
		{SeatID: "s1", SeatNo: "A1", SeatColumn: 1},
		{SeatID: "s2", SeatNo: "A2", SeatColumn: 2},
	}, nil
}

func (s *scriptedAPI) LockSeats(context.Context, string, string, int, []bookingapi.SeatPrice) (*bookingapi.LockResult, error) {
	return s.lockRes, nil
}

func (s *scriptedAPI) ConfirmLockedSeats(context.Context, bookingapi.ConfirmParams) (*bookingapi.ConfirmResult, error) {
	return s.confirmRes, nil
}

func (s *scriptedAPI) ReleaseLockedSeats(context.Context, string, string, string) error { return nil }

func (s *scriptedAPI) ReleaseConfirmedLockedSeats(context.Context, string, string, string) error {
	return nil
}

func (s *scriptedAPI) IsValidMember(context.Context, string) (*bookingapi.Member, error) {
	return &bookingapi.Member{Valid: true}, nil
}

func newBookingFixture() *BookingHandler {
	api := &scriptedAPI{
		lockRes:    &bookingapi.LockResult{ReferenceNo: "REF123"},
		confirmRes: &bookingapi.ConfirmResult{ID: 77, Remarks: "OK"},
	}
	svc := session.NewService(newMemStore(), api, nil)
	return NewBookingHandler(svc, "test-secret", 30)
}

func doJSON(h echo.HandlerFunc, method, target, body, sessionID string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sessionID != "" {
		c.Set("session_id", sessionID)
	}
	return rec, h(c)
}

func TestCreateSessionIssuesToken(t *testing.T) {
	h := newBookingFixture()
	rec, err := doJSON(h.Create, http.MethodPost, "/v1/sessions",
		`{"cinemaId":"C1","showId":"S1","movieId":"M1"}`, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token   string `json:"token"`
		Session struct {
			ID                    string `json:"id"`
			State                 string `json:"state"`
			MaxTickets            int    `json:"maxTickets"`
			SelectionRemainingSec int    `json:"selectionRemainingSec"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.Session.ID)
	assert.Equal(t, "IDLE", resp.Session.State)
	assert.Equal(t, 6, resp.Session.MaxTickets)
	assert.Greater(t, resp.Session.SelectionRemainingSec, 290, "selection timer starts at five minutes")
}

func TestCreateSessionValidation(t *testing.T) {
	h := newBookingFixture()
	rec, err := doJSON(h.Create, http.MethodPost, "/v1/sessions", `{"cinemaId":"C1"}`, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func createSession(t *testing.T, h *BookingHandler) string {
	t.Helper()
	rec, err := doJSON(h.Create, http.MethodPost, "/v1/sessions",
		`{"cinemaId":"C1","showId":"S1","movieId":"M1"}`, "")
	require.NoError(t, err)
	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Session.ID
}

func TestSetTicketsAckFlow(t *testing.T) {
	h := newBookingFixture()
	id := createSession(t, h)

	// Restricted category without acknowledgement: 409 with the list.
	rec, err := doJSON(h.SetTickets, http.MethodPut, "/v1/sessions/tickets",
		`{"tickets":{"2":1}}`, id)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, []string{"kids"}, conflict.Categories)

	// Acknowledged, the same selection commits.
	rec, err = doJSON(h.SetTickets, http.MethodPut, "/v1/sessions/tickets",
		`{"tickets":{"2":1},"acknowledgements":["kids"]}`, id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLockAndConfirmFlow(t *testing.T) {
	h := newBookingFixture()
	id := createSession(t, h)

	rec, err := doJSON(h.SetTickets, http.MethodPut, "/v1/sessions/tickets",
		`{"tickets":{"1":2}}`, id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, seatNo := range []string{"A1", "A2"} {
		rec, err = doJSON(h.ToggleSeat, http.MethodPut, "/v1/sessions/seats",
			`{"seatNo":"`+seatNo+`"}`, id)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, err = doJSON(h.Lock, http.MethodPost, "/v1/sessions/lock", "", id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	var locked sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locked))
	assert.Equal(t, "LOCKED", locked.State)
	assert.Equal(t, "REF123", locked.ReferenceNo)
	assert.Greater(t, locked.LockRemainingSec, 115, "lock timer starts at 120 seconds")

	rec, err = doJSON(h.Confirm, http.MethodPost, "/v1/sessions/confirm",
		`{"name":"Aina","email":"aina@example.com","mobile":"0123456789","paymentVia":"card"}`, id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	var confirmed sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, "CONFIRMED", confirmed.State)
}

func TestConfirmRejectionMapsToConflict(t *testing.T) {
	api := &scriptedAPI{
		lockRes:    &bookingapi.LockResult{ReferenceNo: "REF123"},
		confirmRes: &bookingapi.ConfirmResult{ID: 0, Remarks: "Failed"},
	}
	h := NewBookingHandler(session.NewService(newMemStore(), api, nil), "test-secret", 30)
	id := createSession(t, h)

	_, err := doJSON(h.SetTickets, http.MethodPut, "/v1/sessions/tickets", `{"tickets":{"1":2}}`, id)
	require.NoError(t, err)
	for _, seatNo := range []string{"A1", "A2"} {
		_, err = doJSON(h.ToggleSeat, http.MethodPut, "/v1/sessions/seats", `{"seatNo":"`+seatNo+`"}`, id)
		require.NoError(t, err)
	}
	_, err = doJSON(h.Lock, http.MethodPost, "/v1/sessions/lock", "", id)
	require.NoError(t, err)

	rec, err := doJSON(h.Confirm, http.MethodPost, "/v1/sessions/confirm",
		`{"name":"Aina","email":"aina@example.com","mobile":"0123456789"}`, id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "confirmation rejected")
}

func TestGetUnknownSessionIsNotFound(t *testing.T) {
	h := newBookingFixture()
	rec, err := doJSON(h.Get, http.MethodGet, "/v1/sessions", "", "missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newBookingFixture()
	id := createSession(t, h)

	rec, err := doJSON(h.Release, http.MethodDelete, "/v1/sessions", "", id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// A second release of the same (now gone) session still succeeds.
	rec, err = doJSON(h.Release, http.MethodDelete, "/v1/sessions", "", id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
