package ticketing

import (
	"github.com/mscinema/booking-service/internal/model"
)

// Assignment binds one selected seat to the price row it will be locked
// under.  The same assignment feeds the price display and the lock
// payload, so both always carry identical priceIDs for a given
// selection.
type Assignment struct {
	SeatID         string  `json:"seatID"`
	SeatNo         string  `json:"seatNo"`
	PriceID        int     `json:"priceID"`
	TicketTypeID   int     `json:"ticketTypeID"`
	TicketTypeName string  `json:"ticketTypeName"`
	Price          float64 `json:"price"`
	TotalPrice     float64 `json:"totalPrice"`
	Fallback       bool    `json:"fallback,omitempty"`
}

// AssignResult is the full outcome of mapping a seat selection onto the
// ticket selection.  FallbackUsed is raised when any seat had to be
// priced off a ticket type that did not match its category; callers
// should log it as a potential mispricing rather than trust it
// silently.
type AssignResult struct {
	Assignments  []Assignment `json:"assignments"`
	Total        float64      `json:"total"`
	FallbackUsed bool         `json:"fallbackUsed,omitempty"`
}

// assigner tracks remaining ticket stock while seats are processed.
type assigner struct {
	prices     []model.TicketTypePrice
	categories []Category
	remaining  []int
}

// AssignSeats deterministically maps each selected seat to a price row.
// Seats are processed in row/column order; twin pairs are assigned
// together, preferring a true twin ticket and falling back to two
// ordinary tickets when twin stock is exhausted.  Accessible (type 1)
// seats consume handicap stock first and VIP stock only when handicap
// stock is empty.  The function is pure: identical inputs always yield
// identical assignments.
func AssignSeats(seats []model.Seat, selected model.SelectedTickets, prices []model.TicketTypePrice, twinOverrides map[int]bool) AssignResult {
	a := &assigner{
		prices:     prices,
		categories: make([]Category, len(prices)),
		remaining:  make([]int, len(prices)),
	}
	for i, t := range prices {
		a.categories[i] = Classify(t, twinOverrides)
		a.remaining[i] = selected[t.TicketTypeID]
	}

	ordered := SortSeats(seats)
	var res AssignResult
	done := make(map[string]bool, len(ordered))

	for _, seat := range ordered {
		if done[seat.SeatID] {
			continue
		}
		done[seat.SeatID] = true

		if seat.IsTwin() {
			if partner, ok := findSeatByID(ordered, seat.PartnerSeatID); ok && !done[partner.SeatID] {
				done[partner.SeatID] = true
				a.assignPair(&res, seat, partner)
				continue
			}
		}
		a.assignSingle(&res, seat)
	}
	return res
}

// assignPair prices a twin pair: one twin ticket covers both seats, and
// when twin stock is out, two ordinary tickets are consumed instead.
func (a *assigner) assignPair(res *AssignResult, first, second model.Seat) {
	if i, ok := a.take(CategoryTwin); ok {
		res.add(a.entry(first, i, false))
		res.add(entryAt(a.prices[i], second, false))
		return
	}
	for _, seat := range []model.Seat{first, second} {
		if i, ok := a.takeOrdinary(); ok {
			res.add(a.entry(seat, i, false))
		} else {
			a.fallback(res, seat)
		}
	}
}

func (a *assigner) assignSingle(res *AssignResult, seat model.Seat) {
	var idx int
	var ok bool
	switch seat.SeatType {
	case model.SeatTypeVIP:
		// Accessible seats: handicap stock first, VIP when the
		// handicap pool is empty.
		if idx, ok = a.take(CategoryHandicap); !ok {
			idx, ok = a.take(CategoryVIP)
		}
	case model.SeatTypeKids:
		idx, ok = a.take(CategoryKids)
	case model.SeatTypeSofa:
		idx, ok = a.take(CategorySofa)
	default:
		idx, ok = a.takeOrdinary()
	}
	if !ok {
		a.fallback(res, seat)
		return
	}
	res.add(a.entry(seat, idx, false))
}

// fallback prices a seat off any remaining stock, or the first price
// row when everything is exhausted.  This mirrors the long-standing
// production behavior; the Fallback flag exists so the mispricing is
// at least visible upstream.
func (a *assigner) fallback(res *AssignResult, seat model.Seat) {
	res.FallbackUsed = true
	for i := range a.prices {
		if a.remaining[i] > 0 {
			a.remaining[i]--
			res.add(a.entry(seat, i, true))
			return
		}
	}
	if len(a.prices) > 0 {
		res.add(entryAt(a.prices[0], seat, true))
	}
}

// take consumes one unit of the first price row in the given category.
func (a *assigner) take(cat Category) (int, bool) {
	for i := range a.prices {
		if a.categories[i] == cat && a.remaining[i] > 0 {
			a.remaining[i]--
			return i, true
		}
	}
	return 0, false
}

// takeOrdinary consumes one unit of the shared standard pool: standard,
// senior, student or handicap stock, in price-list order.
func (a *assigner) takeOrdinary() (int, bool) {
	for i := range a.prices {
		switch a.categories[i] {
		case CategoryStandard, CategorySenior, CategoryStudent, CategoryHandicap:
			if a.remaining[i] > 0 {
				a.remaining[i]--
				return i, true
			}
		}
	}
	return 0, false
}

func (a *assigner) entry(seat model.Seat, i int, fallback bool) Assignment {
	return entryAt(a.prices[i], seat, fallback)
}

func entryAt(t model.TicketTypePrice, seat model.Seat, fallback bool) Assignment {
	return Assignment{
		SeatID:         seat.SeatID,
		SeatNo:         seat.SeatNo,
		PriceID:        t.PriceID,
		TicketTypeID:   t.TicketTypeID,
		TicketTypeName: t.TicketTypeName,
		Price:          t.Price,
		TotalPrice:     t.TotalTicketPrice,
		Fallback:       fallback,
	}
}

func (r *AssignResult) add(a Assignment) {
	r.Assignments = append(r.Assignments, a)
	r.Total += a.TotalPrice
}
