package ticketing

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/mscinema/booking-service/internal/model"
)

// Errors surfaced by seat toggling.  Handlers translate these to 4xx
// responses with the message as-is.
var (
	ErrSeatNotFound    = errors.New("seat not found in layout")
	ErrSeatUnavailable = errors.New("seat is not available")
	ErrPoolExhausted   = errors.New("no remaining ticket allocation for this seat type")
	ErrSelectionFull   = errors.New("all requested seats are already selected")
	ErrPartnerMissing  = errors.New("twin partner seat not found in layout")
)

// Row is one physical row of the seat grid, keyed by its letter label.
type Row struct {
	Label string       `json:"label"`
	Seats []model.Seat `json:"seats"`
}

// RowLabel derives the row letter of a seat number by stripping the
// trailing digits ("A12" -> "A").
func RowLabel(seatNo string) string {
	return strings.TrimRight(seatNo, "0123456789")
}

// seatColumn parses the numeric suffix of a seat number.  Seats with no
// numeric suffix sort first within their row.
func seatColumn(seatNo string) int {
	label := RowLabel(seatNo)
	n, err := strconv.Atoi(seatNo[len(label):])
	if err != nil {
		return 0
	}
	return n
}

// BuildSeatGrid groups a flat seat list into rows ordered by label, with
// seats ordered by column inside each row.  The input is expected to be
// maintenance-filtered already (the API client does that); occupied
// seats stay in the grid so they can be rendered as unselectable.
func BuildSeatGrid(seats []model.Seat) []Row {
	byRow := map[string][]model.Seat{}
	for _, s := range seats {
		label := RowLabel(s.SeatNo)
		byRow[label] = append(byRow[label], s)
	}
	labels := make([]string, 0, len(byRow))
	for label := range byRow {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	rows := make([]Row, 0, len(labels))
	for _, label := range labels {
		rowSeats := byRow[label]
		sort.Slice(rowSeats, func(i, j int) bool {
			if rowSeats[i].SeatColumn != rowSeats[j].SeatColumn {
				return rowSeats[i].SeatColumn < rowSeats[j].SeatColumn
			}
			return rowSeats[i].SeatNo < rowSeats[j].SeatNo
		})
		rows = append(rows, Row{Label: label, Seats: rowSeats})
	}
	return rows
}

// SortSeats orders seats by row label then column, the canonical order
// the assignment algorithm processes seats in.  The input is copied.
func SortSeats(seats []model.Seat) []model.Seat {
	out := make([]model.Seat, len(seats))
	copy(out, seats)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := RowLabel(out[i].SeatNo), RowLabel(out[j].SeatNo)
		if ri != rj {
			return ri < rj
		}
		return seatColumn(out[i].SeatNo) < seatColumn(out[j].SeatNo)
	})
	return out
}

// ToggleSeat adds or removes seatNo from the current selection and
// returns the new selection.  Twin seats toggle together with their
// partner.  Selection is blocked when the seat's per-type pool is
// consumed or the overall selection already covers every requested
// seat unit; deselection is always permitted.
func ToggleSeat(layout []model.Seat, selection []model.Seat, seatNo string, pools map[model.SeatType]int, maxUnits int) ([]model.Seat, error) {
	seat, ok := findSeat(layout, seatNo)
	if !ok {
		return nil, ErrSeatNotFound
	}

	group := []model.Seat{seat}
	if seat.IsTwin() {
		partner, ok := findSeatByID(layout, seat.PartnerSeatID)
		if !ok {
			return nil, ErrPartnerMissing
		}
		group = append(group, partner)
	}

	// Deselect when any member of the group is already selected.  Both
	// twins leave together so a pair can never be half-selected.
	if anySelected(selection, group) {
		out := make([]model.Seat, 0, len(selection))
		for _, s := range selection {
			if !inGroup(group, s.SeatID) {
				out = append(out, s)
			}
		}
		return out, nil
	}

	for _, s := range group {
		if s.SeatStatus != model.SeatAvailable {
			return nil, ErrSeatUnavailable
		}
	}
	if len(selection)+len(group) > maxUnits {
		return nil, ErrSelectionFull
	}
	used := 0
	for _, s := range selection {
		if s.SeatType == seat.SeatType {
			used++
		}
	}
	if used+len(group) > pools[seat.SeatType] {
		return nil, ErrPoolExhausted
	}

	out := make([]model.Seat, 0, len(selection)+len(group))
	out = append(out, selection...)
	out = append(out, group...)
	return out, nil
}

func findSeat(layout []model.Seat, seatNo string) (model.Seat, bool) {
	for _, s := range layout {
		if s.SeatNo == seatNo {
			return s, true
		}
	}
	return model.Seat{}, false
}

func findSeatByID(layout []model.Seat, seatID string) (model.Seat, bool) {
	for _, s := range layout {
		if s.SeatID == seatID {
			return s, true
		}
	}
	return model.Seat{}, false
}

func anySelected(selection []model.Seat, group []model.Seat) bool {
	for _, s := range selection {
		if inGroup(group, s.SeatID) {
			return true
		}
	}
	return false
}

func inGroup(group []model.Seat, seatID string) bool {
	for _, g := range group {
		if g.SeatID == seatID {
			return true
		}
	}
	return false
}
