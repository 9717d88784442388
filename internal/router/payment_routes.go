package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/handler"
	"github.com/mscinema/booking-service/internal/middleware"
)

// RegisterPayment registers the checkout route and the gateway return
// callback.
//
// The return route is deliberately unauthenticated: the gateway calls
// it directly (or bounces the customer's browser through it) and
// authenticity is established by the skey signature, not by a session
// token.  It is registered for both GET and POST because the gateway
// uses either depending on the channel.
func RegisterPayment(e *echo.Echo, payments *handler.PaymentHandler, jwtSecret string) {
	p := e.Group("/v1/payment")
	p.Use(middleware.SessionAuth(jwtSecret))
	p.POST("/checkout", payments.Checkout)

	e.GET("/payment/return", payments.Return)
	e.POST("/payment/return", payments.Return)

	// Result pages poll the order after the redirect.
	e.GET("/v1/orders/:referenceNo", payments.GetOrder)
}
