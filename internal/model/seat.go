package model

// SeatType enumerates the physical seat categories reported by the
// cinema-operations API.  The numeric values are part of the external
// wire contract and must not be reordered.
type SeatType int

const (
	SeatTypeStandard SeatType = 0 // regular seat
	SeatTypeVIP      SeatType = 1 // VIP or wheelchair-accessible seat
	SeatTypeTwin     SeatType = 2 // twin seat, always sold as a pair
	SeatTypeKids     SeatType = 3 // kids seat
	SeatTypeSofa     SeatType = 4 // sofa / family-bed seat
)

// SeatStatus enumerates seat availability as reported by the external
// seat-layout endpoint.
type SeatStatus int

const (
	SeatAvailable   SeatStatus = 0 // free for selection
	SeatOccupied    SeatStatus = 1 // taken or held by someone else
	SeatMaintenance SeatStatus = 2 // blocked, never shown to customers
)

// Seat describes a single seat of a show as returned by the external
// seat-layout endpoint, after normalization.  Seats are never persisted
// locally; they are fetched fresh per show and live only inside a
// booking session.
//
// Fields:
//  SeatID        – opaque external identifier used in lock payloads.
//  SeatNo        – human label, row letter plus column (e.g. "A12").
//  SeatColumn    – column index within the row.
//  SeatType      – physical category of the seat.
//  SeatStatus    – availability at fetch time.
//  PartnerSeatID – for twin seats, the external ID of the paired seat.
type Seat struct {
	SeatID        string     `json:"seatID"`
	SeatNo        string     `json:"seatNo"`
	SeatColumn    int        `json:"seatColumn"`
	SeatType      SeatType   `json:"seatType"`
	SeatStatus    SeatStatus `json:"seatStatus"`
	PartnerSeatID string     `json:"partnerSeatID,omitempty"`
}

// IsTwin reports whether this seat is half of a twin pair.  A twin seat
// without a partner reference is treated as a regular seat because it
// cannot be toggled as a pair.
func (s Seat) IsTwin() bool {
	return s.SeatType == SeatTypeTwin && s.PartnerSeatID != ""
}
