package shared

import (
	"errors"
	"fmt"
)

// Error kinds returned by the quote and fulfillment engines. Callers match
// them with errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrValidation indicates missing or malformed input. State is never mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a missing quote, order or product.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the operation is not permitted in the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized indicates the actor is neither the owner nor staff.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPaymentVerification indicates a gateway signature mismatch.
	ErrPaymentVerification = errors.New("payment verification failed")
	// ErrInsufficientStock indicates a requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrQuoteExpired indicates an accept attempt after valid_until.
	ErrQuoteExpired = errors.New("quote expired")
)

// InsufficientStockError names the product that blocked a reservation.
type InsufficientStockError struct {
	ProductID string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Title, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s", e.Title)
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
