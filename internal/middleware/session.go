package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SessionAuth returns an Echo middleware that validates the Bearer
// booking-session token and injects the session ID into the request
// context.  The token is issued when a booking session is created and
// carries the session ID as its subject; handlers read it back via
// c.Get("session_id").
func SessionAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing session token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			sid, _ := claims["sid"].(string)
			if sid == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token carries no session"})
			}
			c.Set("session_id", sid)
			return next(c)
		}
	}
}

// sessionID extracts the booking-session ID stored by SessionAuth, or
// "anon" for unauthenticated routes.  Shared by the rate limiter key
// builder.
func sessionID(c echo.Context) string {
	if v, ok := c.Get("session_id").(string); ok && v != "" {
		return v
	}
	return "anon"
}
