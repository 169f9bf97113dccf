package registry

import "errors"

var (
	// ErrUnauthorized is returned when the caller is neither the registry
	// authority nor an identity the operation accepts.
	ErrUnauthorized = errors.New("registry: caller not authorized")

	// ErrDomainExpired is returned when an operation requires a live domain
	// and its expiration has passed.
	ErrDomainExpired = errors.New("registry: domain expired")

	// ErrDomainNotAvailable is returned when registering a name that is still
	// held, or transferring a domain that was never claimed.
	ErrDomainNotAvailable = errors.New("registry: domain not available")

	// ErrInvalidDuration is returned when a registration or renewal period is
	// zero or exceeds MaxTerm.
	ErrInvalidDuration = errors.New("registry: invalid duration")

	// ErrInvalidName is returned when a name hash is the zero value.
	ErrInvalidName = errors.New("registry: invalid name hash")

	// ErrRecordTooLarge is returned when a record payload exceeds MaxRecordPayload.
	ErrRecordTooLarge = errors.New("registry: record payload too large")

	// ErrConflictViolation is returned when a local-chain record write carries
	// a version older than the stored one under the PolygonPriority policy.
	ErrConflictViolation = errors.New("registry: record version conflict")

	// ErrNotFound is returned when an entry the operation needs does not exist.
	ErrNotFound = errors.New("registry: entry not found")

	// ErrAlreadyInitialized is returned when Initialize finds an existing
	// registry entry.
	ErrAlreadyInitialized = errors.New("registry: already initialized")

	// ErrConcurrentModification is returned when an entry changed between the
	// operation's read and its commit. The operation had no effect and can be
	// resubmitted.
	ErrConcurrentModification = errors.New("registry: entry was modified concurrently")
)
