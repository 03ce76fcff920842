package services

import (
	"errors"
	"log/slog"
	"net/http"
)

// Service errors. Handlers map them to HTTP statuses with errors.Is, so
// callers wrap them with fmt.Errorf("...: %w", ErrX).
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrUpstream      = errors.New("upstream service error")
	ErrNotConfigured = errors.New("service not configured")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
)

// StatusFor maps a service error to the HTTP status code returned to callers.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes it with its mapped status. Internal
// errors are not echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "path", r.URL.Path)
		msg = "internal server error"
	} else {
		slog.Warn("Request rejected", "error", err, "status", status, "path", r.URL.Path)
	}
	writeError(w, status, msg)
}
