package model

// TicketTypePrice is the immutable per-show reference data describing a
// purchasable ticket category.  It is fetched once per show from the
// external config endpoint and snapshotted into the booking session.
//
// Fields mirror the external payload after normalization.  PriceID is
// the identifier the lock endpoint expects for each seat; TicketTypeID
// identifies the category itself.
type TicketTypePrice struct {
	TicketTypeID     int     `json:"ticketTypeID"`
	TicketTypeName   string  `json:"ticketTypeName"`
	Price            float64 `json:"price"`
	EntertainmentTax float64 `json:"entertainmentTax"`
	GovtTax          float64 `json:"govtTax"`
	OnlineCharge     float64 `json:"onlineCharge"`
	TotalTicketPrice float64 `json:"totalTicketPrice"`
	PriceID          int     `json:"priceID"`
}

// SelectedTickets maps a ticketTypeID to the number of units the
// customer requested.  Twin units cover two physical seats each.
type SelectedTickets map[int]int

// LockedSeatPrice is the authoritative per-seat price breakdown the
// external lock endpoint returns.  When present it supersedes the
// client-side estimate for all price display and order totals.
type LockedSeatPrice struct {
	SeatNo           string  `json:"seatNo"`
	TicketTypeName   string  `json:"ticketTypeName"`
	Price            float64 `json:"price"`
	EntertainmentTax float64 `json:"entertainmentTax"`
	GovtTax          float64 `json:"govtTax"`
	OnlineCharge     float64 `json:"onlineCharge"`
	TotalTicketPrice float64 `json:"totalTicketPrice"`
}

// ShowConfig carries the booking rules the external config endpoint
// reports for a show, alongside the ticket price list.
type ShowConfig struct {
	MaxTicketsPerTransaction int               `json:"maxTicketsPerTransaction"`
	Prices                   []TicketTypePrice `json:"prices"`
}
