package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestPoller builds a poller with its own cache and hub, driven by
// calling cycle() directly instead of the ticker loop.
func newTestPoller(t *testing.T, transport Transport) (*poller, *Cache, *Hub) {
	t.Helper()
	reg := testRegistry(t)
	cache := NewCache(reg)
	hub := NewHub()
	p := newPoller(reg, transport, &sync.Mutex{}, cache, hub, time.Hour, 0, 3, noopLogger{})
	return p, cache, hub
}

func TestPoller_CycleUpdatesCacheAndNotifies(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, cache, hub := newTestPoller(t, transport)

	var mu sync.Mutex
	var seen []CachedValue
	hub.Add("fan_stage", func(cv CachedValue) {
		mu.Lock()
		seen = append(seen, cv)
		mu.Unlock()
	})

	p.cycle(context.Background())

	cv, ok := cache.Get("fan_stage")
	if !ok || !cv.Valid {
		t.Fatalf("Get() after cycle = %+v, %v; want valid value", cv, ok)
	}
	if cv.Value != int64(2) {
		t.Errorf("cached value = %v, want 2", cv.Value)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("listener invocations = %d, want 1", len(seen))
	}
	if seen[0].Value != int64(2) {
		t.Errorf("notified value = %v, want 2", seen[0].Value)
	}
}

func TestPoller_UnchangedValueDoesNotNotify(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, _, hub := newTestPoller(t, transport)

	var mu sync.Mutex
	count := 0
	hub.Add("fan_stage", func(CachedValue) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	p.cycle(context.Background())
	p.cycle(context.Background())
	p.cycle(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("listener invocations = %d, want 1 (unchanged values suppressed)", count)
	}
}

func TestPoller_OnlySubscribedVariablesAreRead(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	transport.setValue("v00104", "8.5")
	p, cache, hub := newTestPoller(t, transport)

	hub.Add("fan_stage", func(CachedValue) {})

	p.cycle(context.Background())

	if _, ok := cache.Get("fan_stage"); !ok {
		t.Error("subscribed variable was not read")
	}
	if cv, _ := cache.Get("temperature_outside_air"); cv.Valid {
		t.Error("unsubscribed variable was read")
	}
}

func TestPoller_FailureThresholdInvalidates(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, cache, hub := newTestPoller(t, transport)

	var mu sync.Mutex
	var seen []CachedValue
	hub.Add("fan_stage", func(cv CachedValue) {
		mu.Lock()
		seen = append(seen, cv)
		mu.Unlock()
	})

	// Establish a good value, then make the device unreachable.
	p.cycle(context.Background())
	transport.setReadErr(errors.New("connection reset"))

	// Failures below the threshold keep the value valid.
	p.cycle(context.Background())
	p.cycle(context.Background())
	if cv, _ := cache.Get("fan_stage"); !cv.Valid {
		t.Fatal("value invalidated before threshold")
	}

	// The third consecutive failure crosses the threshold.
	p.cycle(context.Background())
	cv, _ := cache.Get("fan_stage")
	if cv.Valid {
		t.Fatal("value still valid after threshold failures")
	}
	if cv.Value != int64(2) {
		t.Errorf("invalidated value = %v, want last good value 2", cv.Value)
	}

	mu.Lock()
	notifications := len(seen)
	last := seen[len(seen)-1]
	mu.Unlock()
	if notifications != 2 {
		t.Errorf("listener invocations = %d, want 2 (initial value + invalidation)", notifications)
	}
	if last.Valid {
		t.Error("invalidation notification carries Valid = true")
	}
}

func TestPoller_RecoveryAfterInvalidationNotifies(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, cache, hub := newTestPoller(t, transport)

	var mu sync.Mutex
	var seen []CachedValue
	hub.Add("fan_stage", func(cv CachedValue) {
		mu.Lock()
		seen = append(seen, cv)
		mu.Unlock()
	})

	p.cycle(context.Background())
	transport.setReadErr(errors.New("timeout"))
	for i := 0; i < 3; i++ {
		p.cycle(context.Background())
	}
	transport.setReadErr(nil)

	// Same raw value, but regaining validity must still notify so
	// consumers can mark the variable available again.
	p.cycle(context.Background())

	cv, _ := cache.Get("fan_stage")
	if !cv.Valid {
		t.Fatal("value not revalidated after recovery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("listener invocations = %d, want 3 (value, invalidation, recovery)", len(seen))
	}
	if !seen[2].Valid {
		t.Error("recovery notification carries Valid = false")
	}
}

func TestPoller_CycleSurvivesPerVariableErrors(t *testing.T) {
	transport := newFakeTransport()
	// fan_stage has no value configured, so its read fails; the
	// temperature read later in the cycle must still happen.
	transport.setValue("v00104", "8.5")
	p, cache, hub := newTestPoller(t, transport)

	hub.Add("fan_stage", func(CachedValue) {})
	hub.Add("temperature_outside_air", func(CachedValue) {})

	p.cycle(context.Background())

	cv, ok := cache.Get("temperature_outside_air")
	if !ok || !cv.Valid {
		t.Fatalf("Get(temperature_outside_air) = %+v, %v; want valid value", cv, ok)
	}
	if cv.Value != 8.5 {
		t.Errorf("temperature = %v, want 8.5", cv.Value)
	}
}

func TestPoller_DecodeFailureCountsTowardThreshold(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, cache, hub := newTestPoller(t, transport)

	hub.Add("fan_stage", func(CachedValue) {})
	p.cycle(context.Background())

	transport.setValue("v00102", "not-a-number")
	for i := 0; i < 3; i++ {
		p.cycle(context.Background())
	}

	cv, _ := cache.Get("fan_stage")
	if cv.Valid {
		t.Error("value still valid after repeated decode failures")
	}
	if cv.Value != int64(2) {
		t.Errorf("invalidated value = %v, want last good value 2", cv.Value)
	}
}

func TestPoller_CancelledContextStopsCycle(t *testing.T) {
	transport := newFakeTransport()
	transport.setValue("v00102", "2")
	p, cache, hub := newTestPoller(t, transport)

	hub.Add("fan_stage", func(CachedValue) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.cycle(ctx)

	if cv, _ := cache.Get("fan_stage"); cv.Valid {
		t.Error("cycle read variables after context cancellation")
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	transport := newFakeTransport()
	p, _, _ := newTestPoller(t, transport)

	p.start(context.Background())
	p.stop()
	p.stop()
}
