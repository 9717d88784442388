package bookingapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscinema/booking-service/internal/model"
)

func TestDecodeSeatLayoutCasingVariants(t *testing.T) {
	// The same logical payload in two casings the external API has been
	// seen emitting.
	lower := []byte(`[{"seatId":"s1","seatNo":"A1","seatColumn":1,"seatType":0,"seatStatus":0}]`)
	upper := []byte(`[{"SeatID":"s1","SeatNo":"A1","SeatColumn":1,"SeatType":0,"SeatStatus":0}]`)

	a, err := decodeSeatLayout(lower)
	require.NoError(t, err)
	b, err := decodeSeatLayout(upper)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 1)
	assert.Equal(t, "s1", a[0].SeatID)
	assert.Equal(t, "A1", a[0].SeatNo)
}

func TestDecodeSeatLayoutFiltersMaintenance(t *testing.T) {
	body := []byte(`{"seats":[
		{"seatID":"s1","seatNo":"A1","seatStatus":0},
		{"seatID":"s2","seatNo":"A2","seatStatus":2},
		{"seatID":"s3","seatNo":"A3","seatStatus":1}
	]}`)
	seats, err := decodeSeatLayout(body)
	require.NoError(t, err)
	require.Len(t, seats, 2, "maintenance seats never leave the client layer")
	assert.Equal(t, "s1", seats[0].SeatID)
	assert.Equal(t, model.SeatOccupied, seats[1].SeatStatus)
}

func TestDecodeShowConfig(t *testing.T) {
	body := []byte(`{
		"MaxTicketsPerTransaction": 8,
		"TicketPrices": [
			{"TicketTypeID": 1, "TicketTypeName": "Adult", "Price": "15.00", "TotalTicketPrice": 17.3, "PriceID": 11}
		]
	}`)
	cfg, err := decodeShowConfig(body)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxTicketsPerTransaction)
	require.Len(t, cfg.Prices, 1)
	assert.Equal(t, 1, cfg.Prices[0].TicketTypeID)
	assert.Equal(t, 15.0, cfg.Prices[0].Price, "string-encoded numbers are tolerated")
	assert.Equal(t, 17.3, cfg.Prices[0].TotalTicketPrice)
}

func TestDecodeShowConfigDefaultsMaxTickets(t *testing.T) {
	cfg, err := decodeShowConfig([]byte(`{"prices":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxTicketsPerTransaction)
}

func TestDecodeLockResult(t *testing.T) {
	body := []byte(`{
		"ReferenceNumber": "REF123",
		"LockedSeats": [{"SeatNo":"A1","TicketType":"Adult","TotalTicketPrice":17.3}]
	}`)
	res, err := decodeLockResult(body)
	require.NoError(t, err)
	assert.Equal(t, "REF123", res.ReferenceNo)
	require.Len(t, res.LockedSeats, 1)
	assert.Equal(t, "Adult", res.LockedSeats[0].TicketTypeName)
}

func TestDecodeConfirmResult(t *testing.T) {
	ok, err := decodeConfirmResult([]byte(`{"id": 77, "remarks": "OK", "referenceNo": "CONF456"}`))
	require.NoError(t, err)
	assert.False(t, ok.Failed())
	assert.Equal(t, "CONF456", ok.ReferenceNo)

	// Body-level failure shapes.
	failed, err := decodeConfirmResult([]byte(`{"id": 0, "remarks": "Failed"}`))
	require.NoError(t, err)
	assert.True(t, failed.Failed())

	zeroID, err := decodeConfirmResult([]byte(`{"remarks": "OK"}`))
	require.NoError(t, err)
	assert.True(t, zeroID.Failed(), "a missing id means the hold was not confirmed")
}

func TestDecodeMember(t *testing.T) {
	m, err := decodeMember([]byte(`{"memberId": "M1", "isValid": true}`))
	require.NoError(t, err)
	assert.True(t, m.Valid)

	m, err = decodeMember([]byte(`{"memberID": "M1"}`))
	require.NoError(t, err)
	assert.True(t, m.Valid, "a returned member id implies validity when no flag is present")

	m, err = decodeMember([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, m.Valid)
}
