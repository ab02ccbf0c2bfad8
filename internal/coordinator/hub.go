package coordinator

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ListenerFunc is invoked when a variable's cached value changes.
//
// Callbacks run synchronously on the goroutine that produced the change
// (poll cycle or write completion); they should return quickly. A panic
// inside a callback is recovered and logged without affecting other
// listeners.
type ListenerFunc func(value CachedValue)

// Handle identifies a registered listener for removal. Registration
// returns an opaque handle rather than relying on function identity,
// which Go cannot compare.
type Handle struct {
	id uuid.UUID
}

// listenerEntry pairs a handle with its callback. Entries keep
// registration order per variable.
type listenerEntry struct {
	handle Handle
	fn     ListenerFunc
}

// Hub maps variables to their registered listeners.
//
// Add and Remove are idempotent and never fail; removing a handle that
// was never registered (or already removed) is a no-op.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]listenerEntry
	logger    Logger
}

// NewHub creates an empty subscription hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string][]listenerEntry),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used for callback failure reports.
func (h *Hub) SetLogger(logger Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// Add registers a callback for a variable and returns its handle.
func (h *Hub) Add(variableID string, fn ListenerFunc) Handle {
	handle := Handle{id: uuid.New()}

	h.mu.Lock()
	h.listeners[variableID] = append(h.listeners[variableID], listenerEntry{handle: handle, fn: fn})
	h.mu.Unlock()

	return handle
}

// Remove deregisters a listener. Safe to call more than once and safe
// for handles that were never registered. Notify copies the listener
// list before invoking callbacks, so a notification already in flight
// may still call the listener once after Remove returns; callers that
// tear down state a callback touches must tolerate one late delivery.
func (h *Hub) Remove(variableID string, handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.listeners[variableID]
	for i, e := range entries {
		if e.handle == handle {
			h.listeners[variableID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(h.listeners[variableID]) == 0 {
		delete(h.listeners, variableID)
	}
}

// Notify invokes every listener registered for the variable, in
// registration order. A panicking callback is isolated and logged; the
// remaining callbacks still run.
func (h *Hub) Notify(value CachedValue) {
	h.mu.RLock()
	entries := make([]listenerEntry, len(h.listeners[value.VariableID]))
	copy(entries, h.listeners[value.VariableID])
	logger := h.logger
	h.mu.RUnlock()

	for _, e := range entries {
		h.invoke(logger, e, value)
	}
}

// invoke runs one callback with panic isolation.
func (h *Hub) invoke(logger Logger, e listenerEntry, value CachedValue) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked",
				"variable", value.VariableID,
				"panic", r,
			)
		}
	}()
	e.fn(value)
}

// SubscribedVariables returns the IDs that currently have at least one
// listener, sorted for a stable polling order.
func (h *Hub) SubscribedVariables() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListenerCount returns the number of listeners for a variable.
func (h *Hub) ListenerCount(variableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[variableID])
}
