package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/openvent/helios-core/internal/infrastructure/config"
)

// newDisconnectedClient builds a client without touching the network.
func newDisconnectedClient() *Client {
	return &Client{
		cfg: config.MQTTConfig{
			QoS: 1,
			Broker: config.MQTTBrokerConfig{
				ClientID: "helios-core-test",
			},
		},
		subscriptions: make(map[string]subscription),
	}
}

// TestTopics verifies the topic builders.
func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State("fan_stage"), "helios/state/fan_stage"},
		{"command", topics.Command("party_mode"), "helios/command/party_mode"},
		{"health", topics.Health(), "helios/health"},
		{"all commands", topics.AllCommands(), "helios/command/+"},
		{"all states", topics.AllStates(), "helios/state/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// TestPublishValidation verifies input checks that run before any I/O.
func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish with empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("helios/state/fan_stage", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish with QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("helios/state/fan_stage", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish with oversized payload error = %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("helios/state/fan_stage", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish while disconnected error = %v, want ErrNotConnected", err)
	}
}

// TestSubscribeValidation verifies input checks that run before any I/O.
func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe with empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("helios/command/+", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe with QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("helios/command/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe with nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("helios/command/+", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe while disconnected error = %v, want ErrNotConnected", err)
	}
	if got := c.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after failed subscribes = %d, want 0", got)
	}
}

// TestBuildClientOptions verifies broker URL and credential wiring.
func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "helios-core",
		},
		Auth: config.MQTTAuthConfig{
			Username: "helios",
			Password: "secret",
		},
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %v, want tcp://broker.local:1883", opts.Servers)
	}
	if opts.Username != "helios" {
		t.Errorf("username = %q, want helios", opts.Username)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme with TLS = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS enabled but TLSConfig is nil")
	}
}

// TestStatusPayloads verifies the health payloads are well-formed JSON.
func TestStatusPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"online":  buildOnlinePayload("helios-core"),
		"offline": buildOfflinePayload("helios-core"),
	} {
		var decoded map[string]string
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			t.Errorf("%s payload is not valid JSON: %v", name, err)
			continue
		}
		if decoded["status"] != name {
			t.Errorf("%s payload status = %q", name, decoded["status"])
		}
		if decoded["client_id"] != "helios-core" {
			t.Errorf("%s payload client_id = %q", name, decoded["client_id"])
		}
	}

	if !strings.Contains(buildOfflinePayload("x"), "graceful_shutdown") {
		t.Error("offline payload missing graceful_shutdown reason")
	}
}

// TestCloseWithoutConnect verifies Close is safe on a never-connected client.
func TestCloseWithoutConnect(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
