package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/infrastructure/config"
	"github.com/openvent/helios-core/internal/variable"
)

// Transport is the request/response channel to the physical unit.
// Implemented by the modbus package; faked in tests.
type Transport interface {
	// ReadVariable fetches the raw value string for a variable.
	ReadVariable(ctx context.Context, v variable.Variable) (string, error)

	// WriteVariable sends a raw value string to the unit.
	WriteVariable(ctx context.Context, v variable.Variable, value string) error
}

// Logger defines the logging interface used by the coordinator.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Identity describes the unit the coordinator talks to.
type Identity struct {
	// MAC is the unit's MAC address, the stable device identity.
	MAC string `json:"mac"`

	// DisplayName is the name configured on the unit, or the fallback
	// from config when the unit could not be asked.
	DisplayName string `json:"display_name"`
}

// Deps holds the dependencies required by the Coordinator.
type Deps struct {
	Registry  *variable.Registry
	Transport Transport
	Device    config.DeviceConfig
	Poll      config.PollConfig
	Write     config.WriteConfig
	Logger    Logger
}

// Coordinator owns polling, caching, and write serialization for one
// ventilation unit.
//
// It is the single object consumers talk to: entities and bridges set
// values through SetVariable, subscribe through AddListener, and read
// snapshots through GetValue. The coordinator owns the exclusive-access
// lock around the transport and the poll scheduler's lifecycle.
//
// Thread Safety: all methods are safe for concurrent use.
type Coordinator struct {
	registry *variable.Registry
	cache    *Cache
	hub      *Hub
	writer   *writer
	poller   *poller
	logger   Logger

	// busMu is the single-slot transport lock. It is held for the
	// duration of exactly one read or write exchange.
	busMu sync.Mutex

	mu       sync.Mutex
	started  bool
	identity Identity
}

// New creates a coordinator. The poll scheduler is not started until
// Start is called.
func New(deps Deps) (*Coordinator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("variable registry is required")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Coordinator{
		registry: deps.Registry,
		cache:    NewCache(deps.Registry),
		hub:      NewHub(),
		logger:   logger,
		identity: Identity{
			MAC:         deps.Device.MAC,
			DisplayName: deps.Device.Name,
		},
	}
	c.hub.SetLogger(logger)

	c.writer = newWriter(
		deps.Registry, deps.Transport, &c.busMu, c.cache, c.hub,
		deps.Write.Retries, deps.Write.BackoffInitial(), deps.Write.BackoffMax(),
		logger,
	)
	c.poller = newPoller(
		deps.Registry, deps.Transport, &c.busMu, c.cache, c.hub,
		deps.Poll.Interval(), deps.Poll.InterReadDelay(), deps.Poll.FailureThreshold,
		logger,
	)

	return c, nil
}

// Start asks the unit for its display name and launches the poll
// scheduler. The identity read is best-effort; a transport failure falls
// back to the configured name and polling starts regardless.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	c.readDisplayName(ctx)
	c.poller.start(ctx)

	c.logger.Info("coordinator started",
		"mac", c.Identity().MAC,
		"device", c.Identity().DisplayName,
		"variables", c.registry.Count(),
	)
	return nil
}

// readDisplayName fetches the unit's configured name once at startup.
func (c *Coordinator) readDisplayName(ctx context.Context) {
	v, err := c.registry.Resolve("device_name")
	if err != nil {
		return
	}

	seq := c.cache.BeginRead(v.ID)
	c.busMu.Lock()
	raw, err := c.poller.transport.ReadVariable(ctx, v)
	c.busMu.Unlock()
	if err != nil {
		c.logger.Warn("could not read device name, using configured name", "error", err)
		return
	}

	if _, cv, err := c.cache.ApplyRead(v.ID, seq, raw); err == nil {
		if name, ok := cv.Value.(string); ok && name != "" {
			c.mu.Lock()
			c.identity.DisplayName = name
			c.mu.Unlock()
		}
	}
}

// Close stops the poll scheduler between cycles and abandons pending
// writes with a reported failure. The transport itself is closed by its
// owner.
func (c *Coordinator) Close() {
	c.poller.stop()
	c.writer.close()
	c.logger.Info("coordinator stopped")
}

// Set writes a value to a variable and waits for the outcome.
//
// The value is validated against the variable's declared range before
// any I/O; transport failures are retried with backoff and surface as an
// error after exhaustion, with the cache left at its pre-write value.
func (c *Coordinator) Set(ctx context.Context, id string, value any) error {
	return c.writer.set(ctx, id, value)
}

// SetVariable is the entity-layer variant of Set: failures degrade to a
// boolean so UI actions never raise.
func (c *Coordinator) SetVariable(ctx context.Context, id string, value any) bool {
	if err := c.Set(ctx, id, value); err != nil {
		c.logger.Warn("set variable failed", "variable", id, "value", value, "error", err)
		return false
	}
	return true
}

// AddListener registers a callback invoked whenever the variable's
// cached value changes. Fails fast with variable.ErrUnknownVariable for
// IDs outside the registry.
func (c *Coordinator) AddListener(id string, fn ListenerFunc) (Handle, error) {
	if _, err := c.registry.Resolve(id); err != nil {
		return Handle{}, err
	}
	return c.hub.Add(id, fn), nil
}

// RemoveListener deregisters a listener. Idempotent; safe for handles
// that were never registered.
func (c *Coordinator) RemoveListener(id string, handle Handle) {
	c.hub.Remove(id, handle)
}

// GetValue returns the current cached snapshot for a variable without
// blocking. ok is false for unknown IDs; the snapshot's Value is nil
// until the first successful read.
func (c *Coordinator) GetValue(id string) (CachedValue, bool) {
	return c.cache.Get(id)
}

// Snapshot returns the cached state of every variable, ordered by ID.
func (c *Coordinator) Snapshot() []CachedValue {
	return c.cache.Snapshot()
}

// Identity returns the unit's MAC address and display name.
func (c *Coordinator) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Registry exposes the variable catalog for consumers that render
// metadata (ranges, labels, writability).
func (c *Coordinator) Registry() *variable.Registry {
	return c.registry
}

// LastSeen returns the most recent successful update time across all
// variables, for health reporting.
func (c *Coordinator) LastSeen() time.Time {
	var last time.Time
	for _, cv := range c.cache.Snapshot() {
		if cv.UpdatedAt.After(last) {
			last = cv.UpdatedAt
		}
	}
	return last
}
