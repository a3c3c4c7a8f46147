package api

import (
	"errors"
	"net/http"

	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/storage"
	"github.com/example/wordwindow/internal/window"
)

// ErrInvalidBody is returned for undecodable or invalid request bodies
var ErrInvalidBody = errors.New("invalid request body")

// MapErrorToStatusCode maps internal errors to HTTP status codes
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, window.ErrWordNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, ErrInvalidBody),
		errors.Is(err, session.ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidSettings),
		errors.Is(err, window.ErrInvalidConfig):
		return http.StatusBadRequest

	// Storage is down or unwritable
	case errors.Is(err, session.ErrPersist):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// safeErrorMessage returns the text sent to clients. Internal failures are
// not described beyond their category.
func safeErrorMessage(err error) string {
	switch MapErrorToStatusCode(err) {
	case http.StatusNotFound, http.StatusBadRequest:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "failed to save progress"
	default:
		return "an unexpected error occurred"
	}
}
