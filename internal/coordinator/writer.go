package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/variable"
)

// writeSlot tracks write state for one variable: whether a worker is
// draining it and the single queued write. A newer write replaces the
// queued one (last-writer-wins); the in-flight write is never interrupted.
type writeSlot struct {
	running bool
	pending *pendingWrite
}

// pendingWrite is one queued write request. It is destroyed on ack,
// supersession, or shutdown; the outcome travels over done.
type pendingWrite struct {
	value      any
	encoded    string
	enqueuedAt time.Time
	done       chan error
}

// writer serializes writes per variable and applies them via the
// transport with bounded retry and backoff. Writes to different
// variables proceed concurrently; actual bus access is arbitrated by the
// shared transport lock, so writes never interleave with poll reads.
type writer struct {
	registry  *variable.Registry
	transport Transport
	busMu     *sync.Mutex
	cache     *Cache
	hub       *Hub
	logger    Logger

	retries        int
	backoffInitial time.Duration
	backoffMax     time.Duration

	mu     sync.Mutex
	slots  map[string]*writeSlot
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func newWriter(registry *variable.Registry, transport Transport, busMu *sync.Mutex, cache *Cache, hub *Hub, retries int, backoffInitial, backoffMax time.Duration, logger Logger) *writer {
	return &writer{
		registry:       registry,
		transport:      transport,
		busMu:          busMu,
		cache:          cache,
		hub:            hub,
		logger:         logger,
		retries:        retries,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
		slots:          make(map[string]*writeSlot),
		done:           make(chan struct{}),
	}
}

// set validates, encodes, and enqueues a write, then waits for its
// outcome. Validation failures surface before any transport I/O.
func (w *writer) set(ctx context.Context, id string, value any) error {
	v, err := w.registry.Resolve(id)
	if err != nil {
		return err
	}
	if err := v.ValidateWrite(value); err != nil {
		return err
	}
	encoded, err := v.Encode(value)
	if err != nil {
		return err
	}

	pw := &pendingWrite{
		value:      value,
		encoded:    encoded,
		enqueuedAt: time.Now(),
		done:       make(chan error, 1),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrShuttingDown
	}
	slot := w.slots[id]
	if slot == nil {
		slot = &writeSlot{}
		w.slots[id] = slot
	}
	if slot.pending != nil {
		// Last-writer-wins: the queued value never reached the bus and is
		// dropped in favour of the newer one.
		slot.pending.done <- ErrWriteSuperseded
		w.logger.Debug("pending write superseded", "variable", id)
	}
	slot.pending = pw
	if !slot.running {
		slot.running = true
		w.wg.Add(1)
		go w.drain(v, slot)
	}
	w.mu.Unlock()

	select {
	case err := <-pw.done:
		return err
	case <-ctx.Done():
		// The write itself carries on; only the caller stops waiting.
		return ctx.Err()
	}
}

// drain performs queued writes for one variable until the queue is empty.
// At most one drain goroutine runs per variable, which keeps at most one
// write in flight per variable.
func (w *writer) drain(v variable.Variable, slot *writeSlot) {
	defer w.wg.Done()

	for {
		w.mu.Lock()
		pw := slot.pending
		slot.pending = nil
		if pw == nil {
			slot.running = false
			w.mu.Unlock()
			return
		}
		if w.closed {
			slot.running = false
			w.mu.Unlock()
			pw.done <- ErrShuttingDown
			return
		}
		w.mu.Unlock()

		err := w.perform(v, pw.encoded)
		if err == nil {
			// Optimistic apply: the UI sees the new value immediately; the
			// next poll cycle reconciles if the device clamped it. The wire
			// string is decoded back so the cache holds the same canonical
			// type a poll read would produce (int64 for integer kinds),
			// regardless of what Go type the caller passed in.
			applied := pw.value
			if decoded, decodeErr := v.Decode(pw.encoded); decodeErr == nil {
				applied = decoded
			}
			if changed, cv := w.cache.ApplyWrite(v.ID, applied); changed {
				w.hub.Notify(cv)
			}
		} else {
			w.logger.Warn("write failed",
				"variable", v.ID,
				"error", err,
				"queued_for", time.Since(pw.enqueuedAt).String(),
			)
		}
		pw.done <- err
	}
}

// perform issues the transport write with bounded retry and exponential
// backoff. The cache is left untouched on exhaustion.
func (w *writer) perform(v variable.Variable, encoded string) error {
	var lastErr error
	backoff := w.backoffInitial

	for attempt := 1; attempt <= w.retries; attempt++ {
		w.busMu.Lock()
		err := w.transport.WriteVariable(context.Background(), v, encoded)
		w.busMu.Unlock()

		if err == nil {
			return nil
		}
		lastErr = err
		w.logger.Debug("write attempt failed",
			"variable", v.ID,
			"attempt", attempt,
			"error", err,
		)

		if attempt == w.retries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-w.done:
			return ErrShuttingDown
		}
		backoff *= 2
		if backoff > w.backoffMax {
			backoff = w.backoffMax
		}
	}

	return lastErr
}

// close abandons all pending writes with a reported failure and waits
// for in-flight drains to finish.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.done)
	for id, slot := range w.slots {
		if slot.pending != nil {
			slot.pending.done <- ErrShuttingDown
			slot.pending = nil
			w.logger.Warn("pending write abandoned on shutdown", "variable", id)
		}
	}
	w.mu.Unlock()

	w.wg.Wait()
}
