package coordinator

import (
	"errors"
	"testing"

	"github.com/openvent/helios-core/internal/variable"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(testRegistry(t))
}

func TestCache_ApplyRead_ChangedSemantics(t *testing.T) {
	c := newTestCache(t)

	// First read: prior value is nil, so it counts as a change.
	seq := c.BeginRead("fan_stage")
	changed, cv, err := c.ApplyRead("fan_stage", seq, "2")
	if err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}
	if !changed {
		t.Error("first ApplyRead() changed = false, want true")
	}
	if cv.Value != int64(2) {
		t.Errorf("Value = %v, want 2", cv.Value)
	}
	if !cv.Valid {
		t.Error("Valid = false, want true")
	}

	// Same value again: no change.
	seq = c.BeginRead("fan_stage")
	changed, _, err = c.ApplyRead("fan_stage", seq, "2")
	if err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}
	if changed {
		t.Error("ApplyRead() with equal value changed = true, want false")
	}

	// Different value: change.
	seq = c.BeginRead("fan_stage")
	changed, cv, err = c.ApplyRead("fan_stage", seq, "3")
	if err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}
	if !changed {
		t.Error("ApplyRead() with new value changed = false, want true")
	}
	if got, _ := c.Get("fan_stage"); got.Value != cv.Value {
		t.Errorf("Get() = %v, want %v", got.Value, cv.Value)
	}
}

func TestCache_ApplyRead_OutOfOrderCompletions(t *testing.T) {
	c := newTestCache(t)

	// Two reads issued in order; the later one completes first.
	seq1 := c.BeginRead("fan_stage")
	seq2 := c.BeginRead("fan_stage")

	if _, _, err := c.ApplyRead("fan_stage", seq2, "3"); err != nil {
		t.Fatalf("ApplyRead(seq2) error = %v", err)
	}

	// The stale completion must be discarded.
	_, _, err := c.ApplyRead("fan_stage", seq1, "1")
	if !errors.Is(err, ErrStaleRead) {
		t.Fatalf("ApplyRead(seq1) error = %v, want ErrStaleRead", err)
	}

	cv, _ := c.Get("fan_stage")
	if cv.Value != int64(3) {
		t.Errorf("Value after stale completion = %v, want 3 (seq2's value)", cv.Value)
	}
}

func TestCache_ApplyWrite_BeatsStaleRead(t *testing.T) {
	c := newTestCache(t)

	// A read is in flight when a write completes.
	seq := c.BeginRead("fan_stage")

	changed, cv := c.ApplyWrite("fan_stage", int64(4))
	if !changed {
		t.Error("ApplyWrite() changed = false, want true")
	}
	if cv.Value != int64(4) {
		t.Errorf("Value = %v, want 4", cv.Value)
	}

	// The read completes late with the pre-write value; it must lose.
	if _, _, err := c.ApplyRead("fan_stage", seq, "1"); !errors.Is(err, ErrStaleRead) {
		t.Errorf("late ApplyRead() error = %v, want ErrStaleRead", err)
	}
	if got, _ := c.Get("fan_stage"); got.Value != int64(4) {
		t.Errorf("Value = %v, want 4", got.Value)
	}
}

func TestCache_DecodeFailureKeepsLastGoodValue(t *testing.T) {
	c := newTestCache(t)

	seq := c.BeginRead("fan_stage")
	if _, _, err := c.ApplyRead("fan_stage", seq, "2"); err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}

	seq = c.BeginRead("fan_stage")
	_, _, err := c.ApplyRead("fan_stage", seq, "garbage")
	if !errors.Is(err, variable.ErrDecodeFailed) {
		t.Fatalf("ApplyRead(garbage) error = %v, want ErrDecodeFailed", err)
	}

	// A single failure leaves the prior good value valid.
	cv, _ := c.Get("fan_stage")
	if cv.Value != int64(2) || !cv.Valid {
		t.Errorf("after one decode failure: Value = %v Valid = %v, want 2 true", cv.Value, cv.Valid)
	}
}

func TestCache_RecordFailure_Threshold(t *testing.T) {
	c := newTestCache(t)
	const threshold = 3

	seq := c.BeginRead("fan_stage")
	if _, _, err := c.ApplyRead("fan_stage", seq, "2"); err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}

	// Failures below the threshold keep the value valid.
	for i := 0; i < threshold-1; i++ {
		invalidated, cv := c.RecordFailure("fan_stage", threshold)
		if invalidated {
			t.Fatalf("RecordFailure() #%d invalidated early", i+1)
		}
		if !cv.Valid {
			t.Fatalf("Valid = false after %d failures, want true", i+1)
		}
	}

	// The threshold failure clears validity but keeps the value visible.
	invalidated, cv := c.RecordFailure("fan_stage", threshold)
	if !invalidated {
		t.Error("RecordFailure() at threshold invalidated = false, want true")
	}
	if cv.Valid {
		t.Error("Valid = true after threshold, want false")
	}
	if cv.Value != int64(2) {
		t.Errorf("Value = %v, want last good value 2", cv.Value)
	}

	// Only the transition reports invalidated.
	if again, _ := c.RecordFailure("fan_stage", threshold); again {
		t.Error("RecordFailure() after invalidation reported another transition")
	}

	// A successful read restores validity and counts as a change even if
	// the value is unchanged, so consumers can flip back to available.
	seq = c.BeginRead("fan_stage")
	changed, cv, err := c.ApplyRead("fan_stage", seq, "2")
	if err != nil {
		t.Fatalf("ApplyRead() error = %v", err)
	}
	if !changed {
		t.Error("ApplyRead() after invalidation changed = false, want true")
	}
	if !cv.Valid {
		t.Error("Valid = false after recovery, want true")
	}
}

func TestCache_Snapshot_OrderedAndComplete(t *testing.T) {
	c := newTestCache(t)

	snap := c.Snapshot()
	if len(snap) != testRegistry(t).Count() {
		t.Fatalf("Snapshot() length = %d, want %d", len(snap), testRegistry(t).Count())
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].VariableID >= snap[i].VariableID {
			t.Errorf("Snapshot() not ordered: %q before %q", snap[i-1].VariableID, snap[i].VariableID)
		}
	}
}
