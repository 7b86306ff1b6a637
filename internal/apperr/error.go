// Package apperr holds the error taxonomy shared by the cart, order and
// gateway packages. Every value is a sentinel; wrap it with fmt.Errorf
// and %w so callers can match with errors.Is.
package apperr

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidInput    = errors.New("invalid input")

	// -- Resource State --
	ErrItemNotFound    = errors.New("menu item not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNotDeliveryCrew = errors.New("user is not in delivery crew")
	ErrOrderClosed     = errors.New("order is closed")

	// -- Authentication/Authorization --
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("forbidden")

	// -- Retryable --
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("conflicting update")
)

// IsRetryable reports whether the caller may retry the request with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrConflict)
}
