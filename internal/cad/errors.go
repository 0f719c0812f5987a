package cad

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBookedOn is returned by book-off when there is no active booking.
	ErrNotBookedOn = errors.New("not booked on")
	// ErrSyncFailed wraps transport and decode failures of a sync fetch.
	ErrSyncFailed = errors.New("sync failed")
	// ErrStaleSync marks a full sync older than the store's last sync time.
	ErrStaleSync = errors.New("stale sync response")
	// ErrBookOnRejected is returned when the server refuses a book-on.
	ErrBookOnRejected = errors.New("book on rejected")
	// ErrBookOffRejected is returned when the server refuses a book-off.
	ErrBookOffRejected = errors.New("book off rejected")
	// ErrStatusUpdateFailed is returned when the server refuses a status change.
	ErrStatusUpdateFailed = errors.New("status update failed")
	// ErrInvalidStatus is returned for statuses outside the known set.
	ErrInvalidStatus = errors.New("invalid resource status")
	// ErrIncidentRequired is returned when an incident status has no incident.
	ErrIncidentRequired = errors.New("status requires an incident")
	// ErrInvalidBookOn is returned when a book-on request fails validation.
	ErrInvalidBookOn = errors.New("invalid book on request")
	// ErrUnknownCallsign is returned by commands that need a resource in the store.
	ErrUnknownCallsign = errors.New("unknown callsign")
)

// APIError reports a non-2xx response from the dispatch API.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
}

// IsClientError reports whether err carries a 4xx API response, meaning the
// server validated and refused the request.
func IsClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}
