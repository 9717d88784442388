package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/handler"
)

// RegisterRoutes registers routes that do not require a session token
// on the provided Echo instance.  Currently it exposes only a health
// check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems poll this endpoint to
	// verify that the service is up.
	e.GET("/healthz", handler.Health)
}
