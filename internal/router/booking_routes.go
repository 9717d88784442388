package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mscinema/booking-service/internal/config"
	"github.com/mscinema/booking-service/internal/handler"
	"github.com/mscinema/booking-service/internal/middleware"
)

// RegisterBooking registers the show-data proxies and the booking
// session workflow.
//
// Show routes are public and sit behind the Redis response cache: the
// layouts and price lists they serve change rarely within a sale
// window.  Session routes require the signed session token issued at
// creation, and the routes that hit the external seat API (lock,
// confirm, seat toggling) additionally go through the token-bucket
// rate limiter.
func RegisterBooking(e *echo.Echo, shows *handler.ShowHandler, booking *handler.BookingHandler, jwtSecret string, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	cached := e.Group("/v1/shows", middleware.ShowCache(cacheCfg, rdb))
	cached.GET("/:cinemaID/:showID/seat-layout", shows.GetSeatLayout)
	cached.GET("/:cinemaID/:showID/ticket-prices", shows.GetTicketPrices)

	// Session creation is the only unauthenticated session route; it
	// mints the token the rest of the workflow requires.
	e.POST("/v1/sessions", booking.Create, middleware.RateLimit(rateCfg, rdb))

	s := e.Group("/v1/sessions")
	s.Use(middleware.SessionAuth(jwtSecret))
	s.Use(middleware.RateLimit(rateCfg, rdb))
	s.GET("", booking.Get)
	s.PUT("/tickets", booking.SetTickets)
	s.PUT("/seats", booking.ToggleSeat)
	s.POST("/lock", booking.Lock)
	s.POST("/confirm", booking.Confirm)
	s.DELETE("", booking.Release)
}
