package connect

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the platform has no record for the
	// requested user, installation, or case.
	ErrNotFound = errors.New("not found")

	// ErrOwnerUnknown is returned when an installation carries no
	// extension-owner account.
	ErrOwnerUnknown = errors.New("installation owner is unknown")
)

// APIError carries a non-success platform response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform api error: status %d: %s", e.StatusCode, e.Message)
}
