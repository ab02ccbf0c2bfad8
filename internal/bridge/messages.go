package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StateMessage is the JSON payload published on helios/state/<variable_id>.
type StateMessage struct {
	VariableID string    `json:"variable_id"`
	Value      any       `json:"value"`
	Valid      bool      `json:"valid"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HealthMessage is the JSON payload published on helios/health.
type HealthMessage struct {
	Status      string    `json:"status"`
	DeviceMAC   string    `json:"device_mac"`
	DeviceName  string    `json:"device_name"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
	UptimeSecs  int64     `json:"uptime_seconds"`
	PublishedAt time.Time `json:"published_at"`
}

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthStopping = "stopping"
)

// parseCommandPayload extracts the value from a command payload.
//
// Two forms are accepted: a wrapped object {"value": 2} and a bare JSON
// scalar (2, true, "auto"). The wrapped form is what the REST API emits;
// the bare form keeps hand-written mosquitto_pub commands convenient.
func parseCommandPayload(payload []byte) (any, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("invalid command payload: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		value, ok := obj["value"]
		if !ok {
			return nil, fmt.Errorf("command object missing value field")
		}
		return value, nil
	}

	return decoded, nil
}

// variableIDFromTopic extracts the variable ID from a command topic.
// Topic shape: helios/command/<variable_id>.
func variableIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] == "" {
		return "", fmt.Errorf("unexpected command topic %q", topic)
	}
	return parts[2], nil
}
