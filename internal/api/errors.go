package api

import (
	"errors"
	"fmt"
)

// Client errors distinguishable by callers.
var (
	// ErrTimeout is returned when a request was aborted by its deadline.
	// Distinct from a server-side failure so callers can offer a retry.
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized is returned on a 401. The session token has already
	// been cleared by the time callers see it.
	ErrUnauthorized = errors.New("session expired")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}
