package repository

import "errors"

// Sentinel errors shared across repositories.  Handlers compare with
// errors.Is to map them onto HTTP status codes.
var (
	// ErrOrderNotFound is returned when no order matches the given
	// reference number.
	ErrOrderNotFound = errors.New("order not found")
)
