// Package coordinator implements the device-state coordinator for one
// Helios ventilation unit: a polling, caching, and dispatch engine over
// a request/response field-bus transport.
//
// # Architecture
//
//	consumers ──► Coordinator.Set ──► writer ──► Transport ──► unit
//	                                     │
//	                                     ▼ (optimistic apply)
//	poller ──► Transport ──► Cache ──► Hub ──► listener callbacks
//
// The Cache holds the last decoded value per variable with a validity
// flag and a per-variable sequence number that discards out-of-order
// read completions. The poller drives periodic reads for subscribed
// variables; the writer serializes writes per variable with
// last-writer-wins supersession and bounded retry. The Hub fans value
// changes out to listeners with per-callback panic isolation.
//
// # Concurrency
//
// The transport is a shared, exclusively-mutable resource: one mutex
// owned by the Coordinator covers every read and write exchange, held
// only for the duration of a single exchange. Writes to different
// variables proceed concurrently up to the bus lock; at most one write
// per variable is in flight at a time. Listener notification runs
// synchronously on the goroutine that produced the change.
//
// # Failure handling
//
// Transport faults are retried locally (writes) or tolerated across
// cycles (reads); a variable's cached value stays visible through
// transient noise and is only marked invalid after the configured
// consecutive-failure threshold. Polling never stops because of errors.
// Write retry exhaustion surfaces as an error (or false from
// SetVariable) with the cache untouched.
package coordinator
