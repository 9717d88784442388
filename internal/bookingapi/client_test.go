package bookingapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSeatsBuildsPathAndPayload(t *testing.T) {
	var gotPath string
	var gotBody []SeatPrice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"referenceNo": "REF123"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	res, err := c.LockSeats(context.Background(), "C1", "S1", 0, []SeatPrice{{SeatID: "s1", PriceID: 11}})
	require.NoError(t, err)
	assert.Equal(t, "REF123", res.ReferenceNo)
	assert.Equal(t, "/Booking/LockSeats/C1/S1/0", gotPath)
	require.Len(t, gotBody, 1)
	assert.Equal(t, "s1", gotBody[0].SeatID)
}

func TestLockSeatsRejectsMissingReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"lockedSeats": []any{}})
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).LockSeats(context.Background(), "C1", "S1", 0, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestConfirmLockedSeatsRoute(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 77, "remarks": "OK"})
	}))
	defer srv.Close()

	res, err := New(srv.URL, nil).ConfirmLockedSeats(context.Background(), ConfirmParams{
		ShowID:      "S1",
		ReferenceNo: "REF123",
		UserID:      "u1",
		Email:       "a@b.co",
		PaymentVia:  "card",
		Name:        "Aina",
		Mobile:      "0123456789",
	})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	// Empty membership is sent as the literal "0" segment.
	assert.Equal(t, "/Booking/ConfirmLockedSeats/S1/REF123/u1/a@b.co/0/card/Name/PassportNo/MobileNo", gotPath)
	assert.Contains(t, gotQuery, "Name=Aina")
	assert.Contains(t, gotQuery, "MobileNo=0123456789")
}

func TestGetConfigPreservesRouteTypo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"maxTicketsPerTransaction": 6})
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).GetConfigAndTicketPrice(context.Background(), "C1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "/ShowDetails/GetConfiqAndTicketPrice/C1/S1", gotPath)
}

func TestCoalescingSharesOneRoundTrip(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"seatID": "s1", "seatNo": "A1", "seatStatus": 0},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seats, err := c.GetSeatLayout(context.Background(), "C1", "S1")
			assert.NoError(t, err)
			assert.Len(t, seats, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "identical concurrent requests share one round trip")
}

func TestUnauthorizedRetriesWithFreshToken(t *testing.T) {
	var mu sync.Mutex
	issued := 0
	dataCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/User/GuestLogin", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		issued++
		tok := "tok" + string(rune('0'+issued))
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": tok})
	})
	mux.HandleFunc("/Booking/IsValidMember/M1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dataCalls++
		first := dataCalls == 1
		mu.Unlock()
		if first {
			// Simulate an expired token on the first attempt.
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
			return
		}
		assert.Equal(t, "Bearer tok2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"memberID": "M1", "isValid": true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokens := NewTokenManager(srv.URL, "app", "key")
	c := New(srv.URL, tokens)

	m, err := c.IsValidMember(context.Background(), "M1")
	require.NoError(t, err)
	assert.True(t, m.Valid)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, issued, "401 invalidates the cached token and fetches once more")
	assert.Equal(t, 2, dataCalls, "the data call is retried exactly once")
}

func TestAPIErrorCarriesUpstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "seats already locked"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).GetSeatLayout(context.Background(), "C1", "S1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "seats already locked", apiErr.Message)
}
