package report

import "errors"

// Sentinel errors for report operations
var (
	// ErrDisallowedEntity is returned for entity keys missing from the registry.
	// It is raised before any cache lookup or remote call.
	ErrDisallowedEntity = errors.New("disallowed entity")

	// ErrInvalidRegistry is returned when an entity declaration breaks a registry invariant
	ErrInvalidRegistry = errors.New("invalid entity registry")

	// ErrDefinitionsUnavailable is returned when no definition store is configured
	ErrDefinitionsUnavailable = errors.New("report definitions are not configured")

	// ErrRemoteExecution wraps failures reported by the remote store
	ErrRemoteExecution = errors.New("remote execution failed")
)

// IsDisallowedEntity checks if an error is ErrDisallowedEntity
func IsDisallowedEntity(err error) bool {
	return errors.Is(err, ErrDisallowedEntity)
}

// IsRemoteExecution checks if an error came from the remote store
func IsRemoteExecution(err error) bool {
	return errors.Is(err, ErrRemoteExecution)
}
