package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/coordinator"
	"github.com/openvent/helios-core/internal/infrastructure/mqtt"
	"github.com/openvent/helios-core/internal/variable"
)

// commandTimeout bounds a single MQTT-initiated write, retries included.
const commandTimeout = 30 * time.Second

// Coordinator is the device-facing surface the bridge consumes.
// Implemented by *coordinator.Coordinator; faked in tests.
type Coordinator interface {
	Set(ctx context.Context, id string, value any) error
	AddListener(id string, fn coordinator.ListenerFunc) (coordinator.Handle, error)
	RemoveListener(id string, handle coordinator.Handle)
	Registry() *variable.Registry
	Identity() coordinator.Identity
	LastSeen() time.Time
}

// MQTTClient is the broker-facing surface the bridge consumes.
// Implemented by *mqtt.Client; faked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Logger is the logging surface the bridge consumes.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bridge translates between the coordinator and MQTT.
//
// Outbound: every variable change is published retained on its state
// topic, so subscribers always see the current value. Inbound: payloads
// on command topics become coordinator writes. Health is published
// periodically by the embedded reporter.
//
// All methods are safe for concurrent use.
type Bridge struct {
	coord  Coordinator
	mqtt   MQTTClient
	qos    byte
	topics mqtt.Topics
	health *healthReporter
	logger Logger

	// handles tracks listener registrations for removal on Stop.
	handles map[string]coordinator.Handle

	// ctx is cancelled on Stop to abort in-flight command writes.
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Options holds the dependencies for creating a bridge.
type Options struct {
	// Coordinator is the device coordinator to bridge.
	Coordinator Coordinator

	// MQTTClient is the connected broker client.
	MQTTClient MQTTClient

	// QoS is the delivery guarantee for published state (default 1).
	QoS int

	// HealthInterval is how often the health status is published.
	// Default: 30 seconds.
	HealthInterval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	qos := opts.QoS
	if qos < 0 || qos > 2 {
		qos = 1
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		coord:     opts.Coordinator,
		mqtt:      opts.MQTTClient,
		qos:       byte(qos),
		logger:    logger,
		handles:   make(map[string]coordinator.Handle),
		ctx:       ctx,
		ctxCancel: ctxCancel,
	}
	b.health = newHealthReporter(opts.Coordinator, opts.MQTTClient, byte(qos), opts.HealthInterval, logger)

	return b, nil
}

// Start registers a listener for every catalog variable and subscribes
// to the command topics. Registering listeners up front also puts every
// variable on the poll schedule, so state topics fill within the first
// cycle.
func (b *Bridge) Start(ctx context.Context) error {
	for _, id := range b.coord.Registry().IDs() {
		id := id
		handle, err := b.coord.AddListener(id, func(cv coordinator.CachedValue) {
			b.publishState(cv)
		})
		if err != nil {
			return fmt.Errorf("registering listener for %s: %w", id, err)
		}
		b.handles[id] = handle
	}

	if err := b.mqtt.Subscribe(b.topics.AllCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.health.start(ctx)

	b.logger.Info("bridge started",
		"variables", len(b.handles),
		"command_topic", b.topics.AllCommands(),
	)
	return nil
}

// Stop deregisters listeners, aborts in-flight command writes, and
// publishes a final stopping status. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		for id, handle := range b.handles {
			b.coord.RemoveListener(id, handle)
		}

		b.health.stop()
		b.wg.Wait()

		b.logger.Info("bridge stopped")
	})
}

// publishState publishes one variable snapshot retained on its state topic.
func (b *Bridge) publishState(cv coordinator.CachedValue) {
	msg := StateMessage{
		VariableID: cv.VariableID,
		Value:      cv.Value,
		Valid:      cv.Valid,
		UpdatedAt:  cv.UpdatedAt,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshalling state message", "variable", cv.VariableID, "error", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.State(cv.VariableID), payload, b.qos, true); err != nil {
		b.logger.Warn("publishing state", "variable", cv.VariableID, "error", err)
	}
}

// handleCommand translates one command payload into a coordinator write.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, err := variableIDFromTopic(topic)
	if err != nil {
		return err
	}

	value, err := parseCommandPayload(payload)
	if err != nil {
		return fmt.Errorf("command for %s: %w", id, err)
	}

	// Writes queue behind the scheduler and retry on failure, so run
	// them off paho's handler goroutine.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()

		if err := b.coord.Set(ctx, id, value); err != nil {
			b.logger.Warn("command rejected",
				"variable", id,
				"value", value,
				"error", err,
			)
			return
		}
		b.logger.Debug("command applied", "variable", id, "value", value)
	}()

	return nil
}

// noopLogger is used when no logger is supplied.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
