package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/model"
	"github.com/mscinema/booking-service/internal/ticketing"
)

// ShowHandler proxies show reference data from the external cinema API:
// the seat layout and the ticket price list.  Responses pass through
// the normalization layer, so clients always see one stable shape no
// matter which payload casing the upstream happens to emit.  Both
// routes sit behind the Redis response cache.
type ShowHandler struct {
	API           *bookingapi.Client
	TwinOverrides map[int]bool
}

// NewShowHandler constructs a ShowHandler around the external client.
// twinOverrides carries the ticket type IDs that always count as twin
// stock regardless of their name.
func NewShowHandler(api *bookingapi.Client, twinOverrides map[int]bool) *ShowHandler {
	if api == nil {
		panic("nil client passed to NewShowHandler")
	}
	return &ShowHandler{API: api, TwinOverrides: twinOverrides}
}

// seatLayoutResponse groups the flat seat list into a row-major grid
// the seat map renders directly.
type seatLayoutResponse struct {
	Rows  []seatRow `json:"rows"`
	Total int       `json:"total"`
}

type seatRow struct {
	Row   string       `json:"row"`
	Seats []model.Seat `json:"seats"`
}

// GetSeatLayout handles GET /v1/shows/:cinemaID/:showID/seat-layout.
// Seats under maintenance are already filtered out by the client layer;
// the grid groups the rest by row label in display order.
func (h *ShowHandler) GetSeatLayout(c echo.Context) error {
	cinemaID, showID := c.Param("cinemaID"), c.Param("showID")
	if cinemaID == "" || showID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cinema and show are required"})
	}
	seats, err := h.API.GetSeatLayout(c.Request().Context(), cinemaID, showID)
	if err != nil {
		return upstreamError(c, err)
	}
	grid := ticketing.BuildSeatGrid(seats)
	resp := seatLayoutResponse{Rows: make([]seatRow, 0, len(grid)), Total: len(seats)}
	for _, row := range grid {
		resp.Rows = append(resp.Rows, seatRow{Row: row.Label, Seats: row.Seats})
	}
	return c.JSON(http.StatusOK, resp)
}

// GetTicketPrices handles GET /v1/shows/:cinemaID/:showID/ticket-prices.
// It returns the show's booking rules and price list, with each price
// row annotated by its resolved category so the client can group and
// gate restricted types without duplicating the classification rules.
func (h *ShowHandler) GetTicketPrices(c echo.Context) error {
	cinemaID, showID := c.Param("cinemaID"), c.Param("showID")
	if cinemaID == "" || showID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cinema and show are required"})
	}
	cfg, err := h.API.GetConfigAndTicketPrice(c.Request().Context(), cinemaID, showID)
	if err != nil {
		return upstreamError(c, err)
	}

	type priceView struct {
		model.TicketTypePrice
		Category     string `json:"category"`
		RequiresAck  bool   `json:"requiresAcknowledgement"`
		SeatsPerUnit int    `json:"seatsPerUnit"`
	}
	prices := make([]priceView, 0, len(cfg.Prices))
	for _, p := range cfg.Prices {
		cat := ticketing.Classify(p, h.TwinOverrides)
		prices = append(prices, priceView{
			TicketTypePrice: p,
			Category:        cat.String(),
			RequiresAck:     cat.RequiresAcknowledgement(),
			SeatsPerUnit:    cat.SeatsPerUnit(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"maxTicketsPerTransaction": cfg.MaxTicketsPerTransaction,
		"prices":                   prices,
	})
}
