package engines

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrBackendRegistered = errors.New("backend already registered")
	ErrEmptyResponse     = errors.New("backend returned no message")
	ErrInvalidConfig     = errors.New("invalid backend configuration")
)

// APIError is returned when a backend answers with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
