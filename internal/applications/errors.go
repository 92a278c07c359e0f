package applications

import (
	"errors"
	"net/http"
)

// Application errors returned by Store implementations.
var (
	// ErrNotFound indicates the requested application does not exist.
	ErrNotFound = errors.New("applications: not found")

	// ErrConflict indicates the application changed since it was read.
	// Returned when an expected-stage check fails or a terminal outcome
	// would be overwritten.
	ErrConflict = errors.New("applications: conflict")
)

// MapHTTPStatus translates application errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
