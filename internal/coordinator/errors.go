package coordinator

import "errors"

// Domain errors for the coordinator package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, coordinator.ErrWriteSuperseded) {
//	    // a newer write replaced this one before it reached the bus
//	}
var (
	// ErrWriteSuperseded is returned to a queued write that was replaced
	// by a newer write to the same variable (last-writer-wins).
	ErrWriteSuperseded = errors.New("coordinator: write superseded by newer value")

	// ErrShuttingDown is returned to pending writes abandoned during
	// teardown.
	ErrShuttingDown = errors.New("coordinator: shutting down")

	// ErrStaleRead is returned by the cache when a read completion is
	// older than an update that already reached the cache. The stale
	// value is discarded.
	ErrStaleRead = errors.New("coordinator: stale read discarded")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coordinator: already started")
)
