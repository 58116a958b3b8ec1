package rfdb

import (
	"github.com/grafema/rfdb/engine"
	"github.com/grafema/rfdb/segment"
)

// Sentinel errors re-exported from the engine so callers can match them
// without importing internal packages.
var (
	// ErrNotFound is returned when a node id resolves to nothing live.
	ErrNotFound = engine.ErrNotFound

	// ErrClosed is returned by every operation on a closed DB.
	ErrClosed = engine.ErrClosed

	// ErrDeltaLogOverflow is returned when unflushed writes exceed the
	// configured cap. Flush and retry.
	ErrDeltaLogOverflow = engine.ErrDeltaLogOverflow
)

// ValidationError reports a rejected node, edge or field declaration.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type ValidationError = engine.ValidationError

// CorruptStoreError reports a segment file that failed its magic, size
// or checksum validation on open.
type CorruptStoreError = segment.CorruptError
