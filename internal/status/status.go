package status

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound                  = errors.New("lookup: not found")
	ErrConflict                  = errors.New("state: conflict")
	ErrInvalidInput              = errors.New("request: invalid input")
	ErrForbidden                 = errors.New("request: forbidden")
	ErrInsufficientAvailability  = errors.New("inventory: insufficient availability")
	ErrPaymentUnavailable        = errors.New("payment: gateway unavailable")
	ErrPaymentVerificationFailed = errors.New("payment: verification failed")
	ErrInvalidCode               = errors.New("entry: invalid code")
	ErrAlreadyUsed               = errors.New("entry: ticket already used")
	ErrIssuanceFailed            = errors.New("issuance: no tickets persisted")
)

// HTTPStatus maps an error chain to the response code handlers send.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInsufficientAvailability), errors.Is(err, ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPaymentUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrInvalidCode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the public message for err, hiding internals of unknown errors.
func Message(err error) string {
	for _, known := range []error{
		ErrNotFound, ErrConflict, ErrInvalidInput, ErrForbidden,
		ErrInsufficientAvailability, ErrPaymentUnavailable, ErrPaymentVerificationFailed,
		ErrInvalidCode, ErrAlreadyUsed, ErrIssuanceFailed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
