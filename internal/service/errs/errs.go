// Package errs holds the service error taxonomy. Callers wrap these
// sentinels with fmt.Errorf("...: %w") and the transport maps them to
// status codes with errors.Is.
package errs

import (
	"errors"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrUnknownProvider   = errors.New("unknown payment provider")
	ErrProvider          = errors.New("payment provider error")
	// ErrUpstream is a provider API failure while handling a well-formed
	// notification. The provider is expected to redeliver.
	ErrUpstream          = errors.New("payment provider unavailable")
	ErrInventoryConflict = errors.New("not enough product")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// HTTPStatus maps an error to the response code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ErrProvider):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInventoryConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
