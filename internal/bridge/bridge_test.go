package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/openvent/helios-core/internal/coordinator"
	"github.com/openvent/helios-core/internal/infrastructure/mqtt"
	"github.com/openvent/helios-core/internal/variable"
)

type setCall struct {
	id    string
	value any
}

// fakeCoordinator implements Coordinator backed by a real hub, so
// listener handles behave exactly as in production.
type fakeCoordinator struct {
	registry *variable.Registry
	hub      *coordinator.Hub

	mu       sync.Mutex
	setCalls []setCall
	setErr   error
	lastSeen time.Time
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	t.Helper()
	reg, err := variable.NewRegistry([]variable.Variable{
		{ID: "fan_stage", Name: "v00102", Kind: variable.KindInt, Size: 1, Min: 0, Max: 4, Writable: true},
		{ID: "party_mode", Name: "v00094", Kind: variable.KindFlag, Size: 1, Writable: true},
	})
	if err != nil {
		t.Fatalf("building test registry: %v", err)
	}
	return &fakeCoordinator{
		registry: reg,
		hub:      coordinator.NewHub(),
		lastSeen: time.Now(),
	}
}

func (f *fakeCoordinator) Set(_ context.Context, id string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls = append(f.setCalls, setCall{id: id, value: value})
	return nil
}

func (f *fakeCoordinator) AddListener(id string, fn coordinator.ListenerFunc) (coordinator.Handle, error) {
	if _, err := f.registry.Resolve(id); err != nil {
		return coordinator.Handle{}, err
	}
	return f.hub.Add(id, fn), nil
}

func (f *fakeCoordinator) RemoveListener(id string, handle coordinator.Handle) {
	f.hub.Remove(id, handle)
}

func (f *fakeCoordinator) Registry() *variable.Registry { return f.registry }

func (f *fakeCoordinator) Identity() coordinator.Identity {
	return coordinator.Identity{MAC: "00:08:FB:AA:BB:CC", DisplayName: "KWL EC 300 W"}
}

func (f *fakeCoordinator) LastSeen() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

func (f *fakeCoordinator) calls() []setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]setCall, len(f.setCalls))
	copy(out, f.setCalls)
	return out
}

type pubRecord struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeMQTT implements MQTTClient and records publishes and subscriptions.
type fakeMQTT struct {
	mu        sync.Mutex
	published []pubRecord
	subs      map[string]mqtt.MessageHandler
	connected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{subs: make(map[string]mqtt.MessageHandler), connected: true}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, pubRecord{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) publishedTo(topic string) []pubRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pubRecord
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func newStartedBridge(t *testing.T) (*Bridge, *fakeCoordinator, *fakeMQTT) {
	t.Helper()
	coord := newFakeCoordinator(t)
	broker := newFakeMQTT()

	b, err := New(Options{
		Coordinator:    coord,
		MQTTClient:     broker,
		HealthInterval: time.Hour, // driven manually in tests
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b, coord, broker
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStart_SubscribesAndListens(t *testing.T) {
	_, coord, broker := newStartedBridge(t)

	broker.mu.Lock()
	_, subscribed := broker.subs["helios/command/+"]
	broker.mu.Unlock()
	if !subscribed {
		t.Error("bridge did not subscribe to helios/command/+")
	}

	for _, id := range coord.registry.IDs() {
		if coord.hub.ListenerCount(id) != 1 {
			t.Errorf("ListenerCount(%s) = %d, want 1", id, coord.hub.ListenerCount(id))
		}
	}
}

func TestStateChangePublishesRetained(t *testing.T) {
	_, coord, broker := newStartedBridge(t)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	coord.hub.Notify(coordinator.CachedValue{
		VariableID: "fan_stage",
		Value:      int64(2),
		Valid:      true,
		UpdatedAt:  now,
	})

	records := broker.publishedTo("helios/state/fan_stage")
	if len(records) != 1 {
		t.Fatalf("publishes to state topic = %d, want 1", len(records))
	}
	if !records[0].retained {
		t.Error("state message not retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(records[0].payload, &msg); err != nil {
		t.Fatalf("unmarshalling state payload: %v", err)
	}
	if msg.VariableID != "fan_stage" || msg.Value != float64(2) || !msg.Valid {
		t.Errorf("state message = %+v", msg)
	}
	if !msg.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", msg.UpdatedAt, now)
	}
}

func TestCommandTriggersWrite(t *testing.T) {
	_, coord, broker := newStartedBridge(t)

	handler := broker.subs["helios/command/+"]
	if err := handler("helios/command/fan_stage", []byte(`{"value": 3}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	waitFor(t, func() bool { return len(coord.calls()) == 1 })
	call := coord.calls()[0]
	if call.id != "fan_stage" || call.value != float64(3) {
		t.Errorf("Set called with (%s, %v), want (fan_stage, 3)", call.id, call.value)
	}
}

func TestCommandBareScalar(t *testing.T) {
	_, coord, broker := newStartedBridge(t)

	handler := broker.subs["helios/command/+"]
	if err := handler("helios/command/party_mode", []byte(`true`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	waitFor(t, func() bool { return len(coord.calls()) == 1 })
	if call := coord.calls()[0]; call.id != "party_mode" || call.value != true {
		t.Errorf("Set called with (%s, %v), want (party_mode, true)", call.id, call.value)
	}
}

func TestCommandRejectsMalformedPayload(t *testing.T) {
	_, coord, broker := newStartedBridge(t)
	handler := broker.subs["helios/command/+"]

	if err := handler("helios/command/fan_stage", []byte(`{not json`)); err == nil {
		t.Error("handler accepted malformed JSON")
	}
	if err := handler("helios/command/fan_stage", []byte(`{"level": 3}`)); err == nil {
		t.Error("handler accepted object without value field")
	}
	if err := handler("helios/command", []byte(`3`)); err == nil {
		t.Error("handler accepted truncated topic")
	}

	time.Sleep(10 * time.Millisecond)
	if calls := coord.calls(); len(calls) != 0 {
		t.Errorf("Set called %d times for rejected payloads", len(calls))
	}
}

func TestStopRemovesListeners(t *testing.T) {
	b, coord, broker := newStartedBridge(t)

	b.Stop()
	b.Stop() // idempotent

	for _, id := range coord.registry.IDs() {
		if coord.hub.ListenerCount(id) != 0 {
			t.Errorf("ListenerCount(%s) after Stop = %d, want 0", id, coord.hub.ListenerCount(id))
		}
	}

	// Final stopping status lands on the health topic.
	records := broker.publishedTo("helios/health")
	if len(records) == 0 {
		t.Fatal("no health publishes recorded")
	}
	var msg HealthMessage
	if err := json.Unmarshal(records[len(records)-1].payload, &msg); err != nil {
		t.Fatalf("unmarshalling health payload: %v", err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final health status = %q, want %q", msg.Status, HealthStopping)
	}
}

func TestHealthStatusDegrades(t *testing.T) {
	coord := newFakeCoordinator(t)
	broker := newFakeMQTT()
	reporter := newHealthReporter(coord, broker, 1, time.Hour, noopLogger{})

	if status := reporter.determineStatus(); status != HealthHealthy {
		t.Errorf("status with fresh reads = %q, want healthy", status)
	}

	coord.mu.Lock()
	coord.lastSeen = time.Now().Add(-time.Hour)
	coord.mu.Unlock()
	if status := reporter.determineStatus(); status != HealthDegraded {
		t.Errorf("status with stale reads = %q, want degraded", status)
	}

	coord.mu.Lock()
	coord.lastSeen = time.Now()
	coord.mu.Unlock()
	broker.mu.Lock()
	broker.connected = false
	broker.mu.Unlock()
	if status := reporter.determineStatus(); status != HealthDegraded {
		t.Errorf("status while disconnected = %q, want degraded", status)
	}
}

func TestParseCommandPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    any
		wantErr bool
	}{
		{"wrapped int", `{"value": 2}`, float64(2), false},
		{"wrapped string", `{"value": "auto"}`, "auto", false},
		{"bare number", `7.5`, 7.5, false},
		{"bare bool", `true`, true, false},
		{"bare string", `"manual"`, "manual", false},
		{"missing value key", `{"level": 2}`, nil, true},
		{"garbage", `{{{`, nil, true},
		{"empty", ``, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommandPayload([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommandPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseCommandPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariableIDFromTopic(t *testing.T) {
	if id, err := variableIDFromTopic("helios/command/fan_stage"); err != nil || id != "fan_stage" {
		t.Errorf("variableIDFromTopic() = %q, %v", id, err)
	}
	for _, topic := range []string{"helios/command", "helios/command/", "helios/command/a/b"} {
		if _, err := variableIDFromTopic(topic); err == nil {
			t.Errorf("variableIDFromTopic(%q) accepted invalid topic", topic)
		}
	}
}
