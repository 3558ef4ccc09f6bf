package transform

import "errors"

var (
	// ErrNotReady is returned by pull, push and store calls made before a
	// reference frame has been set. No external I/O is attempted.
	ErrNotReady = errors.New("reference frame not set")

	// ErrNotYetAvailable is returned by a Provider when the requested frame
	// pair has not been published for the requested time.
	ErrNotYetAvailable = errors.New("transform not yet available")

	// ErrLookupTimeout is returned when a lookup exhausts its attempts.
	ErrLookupTimeout = errors.New("transform lookup timed out")

	// ErrLookupCancelled is returned when the caller's context ends while a
	// lookup is waiting.
	ErrLookupCancelled = errors.New("transform lookup cancelled")

	// ErrExternalService wraps joint store and broadcast sink failures.
	ErrExternalService = errors.New("external service call failed")

	// ErrFileIO wraps failures to append a static-transform record.
	ErrFileIO = errors.New("static transform file write failed")

	// ErrMissingDependency is returned by constructors when a collaborator
	// the variant needs was not supplied.
	ErrMissingDependency = errors.New("missing collaborator")
)
