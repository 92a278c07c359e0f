package sessions

import (
	"errors"
	"net/http"
)

// Session errors returned by Store implementations.
var (
	// ErrNotFound indicates no session exists with the given id.
	ErrNotFound = errors.New("sessions: not found")
)

// MapHTTPStatus translates session errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
