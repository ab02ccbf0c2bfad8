package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/variable"
)

// CachedValue is a snapshot of a variable's last known state.
type CachedValue struct {
	// VariableID identifies the variable in the registry.
	VariableID string `json:"variable_id"`

	// Value is the last decoded value, nil until the first successful read.
	Value any `json:"value"`

	// UpdatedAt is when the value was last applied (UTC).
	UpdatedAt time.Time `json:"updated_at"`

	// Valid is false before the first read and after the consecutive
	// failure threshold has been exceeded. The last good Value stays
	// visible while Valid is false so consumers can show stale data
	// explicitly instead of nothing.
	Valid bool `json:"valid"`
}

// cacheEntry is the mutable per-variable cache state.
type cacheEntry struct {
	value     any
	updatedAt time.Time
	valid     bool

	// appliedSeq is the sequence number of the newest applied update;
	// nextSeq hands out sequence numbers to in-flight reads. A completion
	// carrying a sequence at or below appliedSeq is stale and discarded.
	appliedSeq uint64
	nextSeq    uint64

	// failures counts consecutive read failures since the last good value.
	failures int
}

// Cache holds the last-known decoded value per variable.
//
// It is the single mutation path for cached state: the poll scheduler
// applies read completions through ApplyRead and the write coordinator
// applies optimistic writes through ApplyWrite, both guarded by one lock.
type Cache struct {
	registry *variable.Registry

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	// now is replaceable for tests.
	now func() time.Time
}

// NewCache creates a cache with one empty entry per registry variable,
// preserving the invariant that every cached variable exists in the
// registry.
func NewCache(registry *variable.Registry) *Cache {
	entries := make(map[string]*cacheEntry, registry.Count())
	for _, id := range registry.IDs() {
		entries[id] = &cacheEntry{}
	}
	return &Cache{
		registry: registry,
		entries:  entries,
		now:      time.Now,
	}
}

// Get returns the current snapshot for a variable. It never blocks on
// transport activity. ok is false for IDs outside the registry.
func (c *Cache) Get(id string) (CachedValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return CachedValue{}, false
	}
	return c.snapshotLocked(id, e), true
}

// BeginRead allocates a sequence number for a read about to be issued.
// The number must be handed back to ApplyRead so completions that lost a
// race against a newer update can be discarded.
func (c *Cache) BeginRead(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return 0
	}
	e.nextSeq++
	return e.nextSeq
}

// ApplyRead decodes a raw read completion and applies it to the cache.
//
// Returns whether the decoded value differs semantically from the prior
// one, plus the resulting snapshot. Fails with ErrStaleRead when a newer
// update was applied first (the completion is discarded), or with the
// variable's decode error when the payload is malformed (the prior value
// is left untouched; the caller decides when repeated failures clear the
// validity flag).
func (c *Cache) ApplyRead(id string, seq uint64, raw string) (bool, CachedValue, error) {
	v, err := c.registry.Resolve(id)
	if err != nil {
		return false, CachedValue{}, err
	}

	decoded, err := v.Decode(raw)
	if err != nil {
		return false, CachedValue{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[id]
	if seq <= e.appliedSeq {
		return false, c.snapshotLocked(id, e), fmt.Errorf("%w: %s seq %d <= %d", ErrStaleRead, id, seq, e.appliedSeq)
	}

	changed := !variable.Equal(e.value, decoded) || !e.valid
	e.value = decoded
	e.valid = true
	e.failures = 0
	e.updatedAt = c.now().UTC()
	e.appliedSeq = seq

	return changed, c.snapshotLocked(id, e), nil
}

// ApplyWrite optimistically applies a successfully written value.
//
// The write completed after any read that was in flight when it started,
// so it takes a fresh sequence number; a stale read completing later
// cannot clobber it. The next poll cycle reconciles values the device
// rejected or clamped silently.
func (c *Cache) ApplyWrite(id string, value any) (bool, CachedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false, CachedValue{}
	}

	e.nextSeq++
	changed := !variable.Equal(e.value, value) || !e.valid
	e.value = value
	e.valid = true
	e.failures = 0
	e.updatedAt = c.now().UTC()
	e.appliedSeq = e.nextSeq

	return changed, c.snapshotLocked(id, e)
}

// RecordFailure counts a failed read (transport or decode). Once
// threshold consecutive failures accumulate the entry's validity flag is
// cleared; the last good value stays visible. Returns true on the
// transition to invalid, along with the resulting snapshot.
func (c *Cache) RecordFailure(id string, threshold int) (bool, CachedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false, CachedValue{}
	}

	e.failures++
	if e.failures >= threshold && e.valid {
		e.valid = false
		return true, c.snapshotLocked(id, e)
	}
	return false, c.snapshotLocked(id, e)
}

// Snapshot returns the current state of every variable, ordered by ID.
func (c *Cache) Snapshot() []CachedValue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.registry.IDs()
	values := make([]CachedValue, 0, len(ids))
	for _, id := range ids {
		values = append(values, c.snapshotLocked(id, c.entries[id]))
	}
	return values
}

func (c *Cache) snapshotLocked(id string, e *cacheEntry) CachedValue {
	return CachedValue{
		VariableID: id,
		Value:      e.value,
		UpdatedAt:  e.updatedAt,
		Valid:      e.valid,
	}
}
