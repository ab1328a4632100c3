package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized reports a 401. Recovery is global (forced logout and
	// redirect to the login route), never a local retry.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound reports a 404.
	ErrNotFound = errors.New("not found")

	// ErrValidation reports a 4xx caused by user input, shown inline in
	// the originating form rather than as a toast.
	ErrValidation = errors.New("validation failed")
)

// Error is the decoded non-2xx response body: {"detail": string}.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Detail, e.Status)
}

// Unwrap maps status codes onto the sentinel taxonomy so callers can use
// errors.Is without inspecting codes.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrValidation
	}
	return nil
}

// IsNetwork reports whether err is a transport or non-taxonomy server
// failure, surfaced as a transient toast with a retry affordance.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation)
}
