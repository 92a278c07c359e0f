package documents

import (
	"errors"
	"net/http"
)

// Document errors returned by System implementations.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("documents: not found")

	// ErrTooLarge indicates the upload exceeds the configured size limit.
	ErrTooLarge = errors.New("documents: file exceeds upload size limit")

	// ErrUnsupportedType indicates the file type is not accepted.
	ErrUnsupportedType = errors.New("documents: unsupported file type")
)

// MapHTTPStatus translates document errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
