package bookingapi

// normalize.go folds the external API's inconsistent field casing
// (userID/userId/UserID and friends) into canonical structs at the
// client boundary, so nothing above this package ever sees a raw
// payload.

import (
	"encoding/json"
	"strings"

	"github.com/mscinema/booking-service/internal/model"
)

// payload is a half-parsed JSON object used for case-insensitive field
// lookup before decoding into canonical structs.
type payload map[string]json.RawMessage

func parsePayload(b []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// raw returns the first field whose name matches any of the given keys
// case-insensitively, or nil when none is present.
func (p payload) raw(keys ...string) json.RawMessage {
	for _, k := range keys {
		for name, v := range p {
			if strings.EqualFold(name, k) {
				return v
			}
		}
	}
	return nil
}

// str decodes the first matching field as a string.  Numeric values are
// tolerated and rendered verbatim, because the external API switches
// between string and number encodings for identifiers.
func (p payload) str(keys ...string) string {
	v := p.raw(keys...)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// num decodes the first matching field as a float64, tolerating
// string-encoded numbers.
func (p payload) num(keys ...string) float64 {
	v := p.raw(keys...)
	if v == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		var n json.Number = json.Number(strings.TrimSpace(s))
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return 0
}

// integer decodes the first matching field as an int64.
func (p payload) integer(keys ...string) int64 {
	return int64(p.num(keys...))
}

// list decodes the first matching field as a JSON array of objects.
func (p payload) list(keys ...string) []payload {
	v := p.raw(keys...)
	if v == nil {
		return nil
	}
	var items []payload
	if err := json.Unmarshal(v, &items); err != nil {
		return nil
	}
	return items
}

func decodeSeat(p payload) model.Seat {
	return model.Seat{
		SeatID:        p.str("seatID", "seatId", "id"),
		SeatNo:        p.str("seatNo", "seatNumber"),
		SeatColumn:    int(p.integer("seatColumn", "column")),
		SeatType:      model.SeatType(p.integer("seatType")),
		SeatStatus:    model.SeatStatus(p.integer("seatStatus", "status")),
		PartnerSeatID: p.str("partnerSeatID", "partnerSeatId"),
	}
}

// decodeSeatLayout parses the seat-layout payload, which arrives either
// as a bare array or wrapped in a {seats: [...]} envelope.  Seats under
// maintenance are filtered out here so no caller ever renders them.
func decodeSeatLayout(b []byte) ([]model.Seat, error) {
	var items []payload
	if err := json.Unmarshal(b, &items); err != nil {
		p, perr := parsePayload(b)
		if perr != nil {
			return nil, err
		}
		items = p.list("seats", "seatLayout", "data")
	}
	seats := make([]model.Seat, 0, len(items))
	for _, it := range items {
		s := decodeSeat(it)
		if s.SeatStatus == model.SeatMaintenance {
			continue
		}
		seats = append(seats, s)
	}
	return seats, nil
}

func decodeTicketPrice(p payload) model.TicketTypePrice {
	return model.TicketTypePrice{
		TicketTypeID:     int(p.integer("ticketTypeID", "ticketTypeId")),
		TicketTypeName:   p.str("ticketTypeName", "ticketType"),
		Price:            p.num("price", "ticketPrice"),
		EntertainmentTax: p.num("entertainmentTax"),
		GovtTax:          p.num("govtTax", "governmentTax"),
		OnlineCharge:     p.num("onlineCharge", "onlineCharges"),
		TotalTicketPrice: p.num("totalTicketPrice", "totalPrice"),
		PriceID:          int(p.integer("priceID", "priceId")),
	}
}

// decodeShowConfig parses the config-and-ticket-price payload into a
// ShowConfig.  A missing max-tickets value falls back to 6, the chain's
// long-standing per-transaction cap.
func decodeShowConfig(b []byte) (*model.ShowConfig, error) {
	p, err := parsePayload(b)
	if err != nil {
		return nil, err
	}
	cfg := &model.ShowConfig{
		MaxTicketsPerTransaction: int(p.integer("maxTicketsPerTransaction", "maxTickets")),
	}
	if cfg.MaxTicketsPerTransaction <= 0 {
		cfg.MaxTicketsPerTransaction = 6
	}
	for _, it := range p.list("ticketPrices", "ticketTypePrices", "prices") {
		cfg.Prices = append(cfg.Prices, decodeTicketPrice(it))
	}
	return cfg, nil
}

func decodeLockResult(b []byte) (*LockResult, error) {
	p, err := parsePayload(b)
	if err != nil {
		return nil, err
	}
	res := &LockResult{ReferenceNo: p.str("referenceNo", "referenceNumber")}
	for _, it := range p.list("lockedSeats", "seats") {
		res.LockedSeats = append(res.LockedSeats, model.LockedSeatPrice{
			SeatNo:           it.str("seatNo", "seatNumber"),
			TicketTypeName:   it.str("ticketTypeName", "ticketType"),
			Price:            it.num("price"),
			EntertainmentTax: it.num("entertainmentTax"),
			GovtTax:          it.num("govtTax"),
			OnlineCharge:     it.num("onlineCharge"),
			TotalTicketPrice: it.num("totalTicketPrice"),
		})
	}
	return res, nil
}

func decodeConfirmResult(b []byte) (*ConfirmResult, error) {
	p, err := parsePayload(b)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		ID:          p.integer("id", "bookingID", "bookingId"),
		Remarks:     p.str("remarks", "remark"),
		ReferenceNo: p.str("referenceNo", "referenceNumber"),
	}, nil
}

func decodeMember(b []byte) (*Member, error) {
	p, err := parsePayload(b)
	if err != nil {
		return nil, err
	}
	m := &Member{MemberID: p.str("memberID", "memberId", "membershipID")}
	valid := p.raw("isValid", "valid")
	if valid != nil {
		_ = json.Unmarshal(valid, &m.Valid)
	} else {
		m.Valid = m.MemberID != ""
	}
	return m, nil
}

// errorMessage extracts a human-readable message from an error response
// body, trying the field names the external API has been seen using.
func errorMessage(b []byte) string {
	p, err := parsePayload(b)
	if err != nil {
		return ""
	}
	return p.str("message", "error", "remarks", "errorDescription")
}

func decodeToken(b []byte) string {
	p, err := parsePayload(b)
	if err != nil {
		return ""
	}
	return p.str("token", "accessToken", "access_token")
}
