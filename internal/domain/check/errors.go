package check

import "errors"

var (
	// ErrSkipCheck signals that the payload no longer warrants a recorded
	// result. The runner deletes any existing result and stops.
	ErrSkipCheck = errors.New("check skipped for payload")

	// ErrNotImplemented is returned by checks that do not support an
	// optional contract method, for example Generate on purely reactive
	// checks.
	ErrNotImplemented = errors.New("not implemented by check")

	// ErrPayloadNotFound is returned by Payload when the identifier no
	// longer resolves. The dispatch layer recovers by deleting the stale
	// result.
	ErrPayloadNotFound = errors.New("payload not found")
)
