package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/infrastructure/mqtt"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// staleThreshold is how long without a successful device read before
// health degrades.
const staleThreshold = 2 * time.Minute

// healthReporter periodically publishes service health on the retained
// health topic.
type healthReporter struct {
	coord     Coordinator
	publisher MQTTClient
	qos       byte
	interval  time.Duration
	startTime time.Time
	topics    mqtt.Topics
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newHealthReporter(coord Coordinator, publisher MQTTClient, qos byte, interval time.Duration, logger Logger) *healthReporter {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &healthReporter{
		coord:     coord,
		publisher: publisher,
		qos:       qos,
		interval:  interval,
		startTime: time.Now(),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// start launches the periodic reporting loop.
func (h *healthReporter) start(ctx context.Context) {
	h.wg.Add(1)
	go h.loop(ctx)
}

// stop halts reporting and publishes a final stopping status.
func (h *healthReporter) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort; the LWT covers us if this fails.
		if err := h.publish(HealthStopping); err != nil {
			h.logger.Debug("publishing stopping status", "error", err)
		}
	})
}

func (h *healthReporter) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.publish(h.determineStatus()); err != nil {
		h.logger.Warn("publishing initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.publish(h.determineStatus()); err != nil {
				h.logger.Warn("publishing health", "error", err)
			}
		}
	}
}

// determineStatus degrades when the broker is unreachable or the device
// has not answered a read recently.
func (h *healthReporter) determineStatus() string {
	if !h.publisher.IsConnected() {
		return HealthDegraded
	}
	lastSeen := h.coord.LastSeen()
	if lastSeen.IsZero() || time.Since(lastSeen) > staleThreshold {
		return HealthDegraded
	}
	return HealthHealthy
}

func (h *healthReporter) publish(status string) error {
	identity := h.coord.Identity()
	msg := HealthMessage{
		Status:      status,
		DeviceMAC:   identity.MAC,
		DeviceName:  identity.DisplayName,
		LastSeen:    h.coord.LastSeen(),
		UptimeSecs:  int64(time.Since(h.startTime).Seconds()),
		PublishedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topics.Health(), payload, h.qos, true)
}
