// Package ticketing holds the pure seat/ticket mapping rules: category
// classification, selection pools, twin pairing and the deterministic
// seat-to-price assignment used for both price display and the lock
// payload.  Nothing in this package performs I/O.
package ticketing

import (
	"strings"

	"github.com/mscinema/booking-service/internal/model"
)

// Category is the pricing category a ticket type belongs to, derived
// from its name (and, for twins, an optional venue-specific override
// list supplied through configuration).
type Category int

const (
	CategoryStandard Category = iota
	CategoryVIP
	CategoryHandicap
	CategoryTwin
	CategoryKids
	CategorySofa
	CategorySenior
	CategoryStudent
)

// String returns the lower-case label used in API responses and
// acknowledgement lists.
func (c Category) String() string {
	switch c {
	case CategoryVIP:
		return "vip"
	case CategoryHandicap:
		return "handicap"
	case CategoryTwin:
		return "twin"
	case CategoryKids:
		return "kids"
	case CategorySofa:
		return "sofa"
	case CategorySenior:
		return "senior"
	case CategoryStudent:
		return "student"
	default:
		return "standard"
	}
}

// Classify maps a ticket type to its category.  twinOverrides lists
// ticket type IDs that must be treated as twin regardless of name;
// some halls sell twin stock under plain names, so the override set is
// configuration, not code.
func Classify(t model.TicketTypePrice, twinOverrides map[int]bool) Category {
	if twinOverrides[t.TicketTypeID] {
		return CategoryTwin
	}
	name := strings.ToLower(t.TicketTypeName)
	switch {
	case strings.Contains(name, "twin"):
		return CategoryTwin
	case strings.Contains(name, "sofa"), strings.Contains(name, "family"):
		return CategorySofa
	case strings.Contains(name, "kid"), strings.Contains(name, "child"):
		return CategoryKids
	case strings.Contains(name, "oku"), strings.Contains(name, "handicap"), strings.Contains(name, "wheelchair"):
		return CategoryHandicap
	case strings.Contains(name, "senior"):
		return CategorySenior
	case strings.Contains(name, "student"):
		return CategoryStudent
	case strings.Contains(name, "vip"), strings.Contains(name, "premium"):
		return CategoryVIP
	default:
		return CategoryStandard
	}
}

// RequiresAcknowledgement reports whether selecting this category needs
// an explicit eligibility acknowledgement from the customer (family
// bed, kids, senior, OKU and student tickets are restricted).
func (c Category) RequiresAcknowledgement() bool {
	switch c {
	case CategorySofa, CategoryKids, CategorySenior, CategoryHandicap, CategoryStudent:
		return true
	}
	return false
}

// SeatsPerUnit returns how many physical seats one ticket unit of the
// category occupies.  Twin tickets cover a pair.
func (c Category) SeatsPerUnit() int {
	if c == CategoryTwin {
		return 2
	}
	return 1
}

// TotalSeatUnits computes the number of physical seats a ticket
// selection occupies, weighting twin units by two.  This figure gates
// both the per-transaction cap and the lock precondition.
func TotalSeatUnits(selected model.SelectedTickets, prices []model.TicketTypePrice, twinOverrides map[int]bool) int {
	total := 0
	for _, t := range prices {
		n := selected[t.TicketTypeID]
		if n <= 0 {
			continue
		}
		total += n * Classify(t, twinOverrides).SeatsPerUnit()
	}
	return total
}

// UnacknowledgedCategories returns the restricted categories present in
// the selection that are missing from the acknowledgement list, in
// price-list order.  An empty result means the selection may commit.
func UnacknowledgedCategories(selected model.SelectedTickets, prices []model.TicketTypePrice, twinOverrides map[int]bool, acks []string) []string {
	acked := make(map[string]bool, len(acks))
	for _, a := range acks {
		acked[strings.ToLower(a)] = true
	}
	var missing []string
	seen := make(map[string]bool)
	for _, t := range prices {
		if selected[t.TicketTypeID] <= 0 {
			continue
		}
		cat := Classify(t, twinOverrides)
		if !cat.RequiresAcknowledgement() {
			continue
		}
		label := cat.String()
		if !acked[label] && !seen[label] {
			seen[label] = true
			missing = append(missing, label)
		}
	}
	return missing
}

// SeatPoolCapacities sizes the per-seat-type selection pools from a
// ticket selection.  Standard seats are fed by standard, senior,
// student and handicap tickets (the normal/handicap pool is shared);
// VIP seats by VIP and handicap tickets; twin, kids and sofa seats
// each by their own category.
func SeatPoolCapacities(selected model.SelectedTickets, prices []model.TicketTypePrice, twinOverrides map[int]bool) map[model.SeatType]int {
	pools := map[model.SeatType]int{}
	for _, t := range prices {
		n := selected[t.TicketTypeID]
		if n <= 0 {
			continue
		}
		switch Classify(t, twinOverrides) {
		case CategoryTwin:
			pools[model.SeatTypeTwin] += 2 * n
		case CategoryKids:
			pools[model.SeatTypeKids] += n
		case CategorySofa:
			pools[model.SeatTypeSofa] += n
		case CategoryVIP:
			pools[model.SeatTypeVIP] += n
		case CategoryHandicap:
			pools[model.SeatTypeVIP] += n
			pools[model.SeatTypeStandard] += n
		default:
			pools[model.SeatTypeStandard] += n
		}
	}
	return pools
}
