package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id is absent at every tier:
	// delta log, tombstones, and current generation.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by any operation on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrDeltaLogOverflow is returned when an insert would push the
	// delta log past its configured cap. Flush and retry.
	ErrDeltaLogOverflow = errors.New("delta log overflow")
)

// ValidationError reports a malformed record or declaration.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }
