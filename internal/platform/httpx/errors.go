// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/signalworks/storefront/internal/shared"
)

// StatusFor maps an engine error kind to an HTTP status code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "Invalid State"
	case errors.Is(err, shared.ErrPaymentVerification):
		return http.StatusPaymentRequired, "Payment Verification Failed"
	case errors.Is(err, shared.ErrInsufficientStock):
		return http.StatusConflict, "Insufficient Stock"
	case errors.Is(err, shared.ErrQuoteExpired):
		return http.StatusGone, "Quote Expired"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
