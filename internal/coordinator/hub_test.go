package coordinator

import (
	"testing"
)

func TestHub_NotifyInRegistrationOrder(t *testing.T) {
	h := NewHub()

	var order []int
	h.Add("fan_stage", func(CachedValue) { order = append(order, 1) })
	h.Add("fan_stage", func(CachedValue) { order = append(order, 2) })
	h.Add("fan_stage", func(CachedValue) { order = append(order, 3) })

	h.Notify(CachedValue{VariableID: "fan_stage", Value: 2, Valid: true})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("notification order = %v, want [1 2 3]", order)
	}
}

func TestHub_PanickingListenerIsIsolated(t *testing.T) {
	h := NewHub()

	var secondRan bool
	h.Add("fan_stage", func(CachedValue) { panic("listener bug") })
	h.Add("fan_stage", func(CachedValue) { secondRan = true })

	// Must not panic the notifier.
	h.Notify(CachedValue{VariableID: "fan_stage", Value: 2, Valid: true})

	if !secondRan {
		t.Error("second listener did not run after first panicked")
	}
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	h := NewHub()

	called := 0
	handle := h.Add("fan_stage", func(CachedValue) { called++ })

	h.Remove("fan_stage", handle)
	h.Remove("fan_stage", handle)                    // second remove of same handle
	h.Remove("fan_stage", Handle{})                  // never registered
	h.Remove("temperature_outside_air", Handle{})    // no listeners at all

	h.Notify(CachedValue{VariableID: "fan_stage", Value: 2, Valid: true})
	if called != 0 {
		t.Errorf("removed listener was invoked %d times", called)
	}
}

func TestHub_RemoveDuringNotifyDelivery(t *testing.T) {
	h := NewHub()

	// Notify copies the listener list before invoking callbacks, so a
	// listener may remove itself (or a peer) mid-delivery without
	// deadlocking, and every listener in the snapshot still runs once.
	var firstCalls, secondCalls int
	var second Handle
	h.Add("fan_stage", func(CachedValue) {
		firstCalls++
		h.Remove("fan_stage", second)
	})
	second = h.Add("fan_stage", func(CachedValue) { secondCalls++ })

	h.Notify(CachedValue{VariableID: "fan_stage", Value: 2, Valid: true})
	if firstCalls != 1 || secondCalls != 1 {
		t.Errorf("first delivery calls = %d/%d, want 1/1", firstCalls, secondCalls)
	}

	h.Notify(CachedValue{VariableID: "fan_stage", Value: 3, Valid: true})
	if secondCalls != 1 {
		t.Errorf("removed listener invoked again, calls = %d", secondCalls)
	}
}

func TestHub_RemoveOnlyTargetsHandle(t *testing.T) {
	h := NewHub()

	var a, b int
	ha := h.Add("fan_stage", func(CachedValue) { a++ })
	h.Add("fan_stage", func(CachedValue) { b++ })

	h.Remove("fan_stage", ha)
	h.Notify(CachedValue{VariableID: "fan_stage", Value: 2, Valid: true})

	if a != 0 {
		t.Errorf("removed listener invoked %d times", a)
	}
	if b != 1 {
		t.Errorf("remaining listener invoked %d times, want 1", b)
	}
}

func TestHub_SubscribedVariables(t *testing.T) {
	h := NewHub()

	if got := h.SubscribedVariables(); len(got) != 0 {
		t.Errorf("SubscribedVariables() = %v, want empty", got)
	}

	h.Add("temperature_outside_air", func(CachedValue) {})
	h.Add("fan_stage", func(CachedValue) {})
	hb := h.Add("fan_stage", func(CachedValue) {})

	got := h.SubscribedVariables()
	if len(got) != 2 || got[0] != "fan_stage" || got[1] != "temperature_outside_air" {
		t.Errorf("SubscribedVariables() = %v, want [fan_stage temperature_outside_air]", got)
	}

	// Removing one of two listeners keeps the variable subscribed.
	h.Remove("fan_stage", hb)
	got = h.SubscribedVariables()
	if len(got) != 2 {
		t.Errorf("SubscribedVariables() = %v, want both variables still present", got)
	}
}
