package daemon

import "errors"

// Domain errors surfaced by the lifecycle engine. The control API maps
// these to HTTP status codes; everything else is treated as an internal
// failure.
var (
	// ErrDatabaseNotFound covers both a genuinely unknown id and a
	// document the caller is not allowed to see. Callers cannot tell the
	// two apart.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRegionNotFound is returned when a create names an unknown region.
	ErrRegionNotFound = errors.New("region does not exist")

	// ErrRegionExists is returned when a region id is already taken.
	ErrRegionExists = errors.New("region id must be unique")

	// ErrInactiveTechContact rejects a technical contact that resolved
	// but is not active in the account.
	ErrInactiveTechContact = errors.New("only an active user can be a technical contact")

	// ErrNotActive rejects reconfigure on anything but an active database.
	ErrNotActive = errors.New("only an active database can be reconfigured")

	// ErrCredentialsRequired rejects the first activation without a
	// credentials bundle.
	ErrCredentialsRequired = errors.New("credentials are required for activation")

	// ErrDatabaseDeleted rejects mutation of a deleted database.
	ErrDatabaseDeleted = errors.New("database is deleted")

	// ErrIDGeneration is returned when id allocation exhausts its retry
	// budget without finding a free id.
	ErrIDGeneration = errors.New("id generation error")

	// ErrCipherNotConfigured is returned when an operation needs the
	// credentials cipher but no encryption key was configured.
	ErrCipherNotConfigured = errors.New("encryption key is not configured")

	// ErrStoreUnavailable wraps persistence failures other than
	// not-found and duplicate-id.
	ErrStoreUnavailable = errors.New("database store unavailable")
)
