package circuitbreaker

import (
	"testing"
	"time"

	"assetpulse/internal/resilience"
)

func testRegistry(clock resilience.Clock) *Registry {
	return NewRegistry(Config{FailureThreshold: 5, Cooldown: 60 * time.Second}, clock)
}

func TestIsOpen_UnknownKeyIsClosed(t *testing.T) {
	r := testRegistry(resilience.NewManualClock(time.Now()))
	if r.IsOpen("never-seen") {
		t.Error("unknown key should be closed")
	}
}

func TestRecordFailure_OpensAtThreshold(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	for i := 0; i < 4; i++ {
		r.RecordFailure("source-a")
		if r.IsOpen("source-a") {
			t.Fatalf("breaker open after %d failures, threshold is 5", i+1)
		}
	}
	r.RecordFailure("source-a")
	if !r.IsOpen("source-a") {
		t.Error("breaker should open after 5 failures")
	}
}

func TestRecordSuccess_ResetsState(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	for i := 0; i < 5; i++ {
		r.RecordFailure("source-a")
	}
	r.RecordSuccess("source-a")

	if r.IsOpen("source-a") {
		t.Error("breaker should close on success")
	}
	st := r.Snapshot()["source-a"]
	if st.FailureCount != 0 {
		t.Errorf("failure count = %d, want 0", st.FailureCount)
	}
	if !st.LastFailureTime.IsZero() {
		t.Error("last failure time should be cleared")
	}
	if !st.NextAttemptTime.IsZero() {
		t.Error("next attempt time should be cleared")
	}
}

func TestRecordSuccess_ResetsPartialStreak(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	// 4 failures, then success, then 4 more: never opens, because the
	// threshold counts failures since the last success.
	for i := 0; i < 4; i++ {
		r.RecordFailure("source-a")
	}
	r.RecordSuccess("source-a")
	for i := 0; i < 4; i++ {
		r.RecordFailure("source-a")
	}
	if r.IsOpen("source-a") {
		t.Error("breaker should not open: failure streak was interrupted by a success")
	}
}

func TestIsOpen_CooldownProbeExactlyOnce(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	for i := 0; i < 5; i++ {
		r.RecordFailure("k")
	}
	if !r.IsOpen("k") {
		t.Fatal("breaker should be open")
	}

	// Before the cooldown elapses, the breaker stays open.
	clock.Advance(30 * time.Second)
	if !r.IsOpen("k") {
		t.Fatal("breaker opened probe before cooldown elapsed")
	}

	// After the cooldown, exactly one probe is let through.
	clock.Advance(31 * time.Second)
	if r.IsOpen("k") {
		t.Fatal("first check after cooldown should allow a probe")
	}
	if !r.IsOpen("k") {
		t.Fatal("second check must stay open while the probe is outstanding")
	}
}

func TestProbeFailure_ReopensWithFreshWindow(t *testing.T) {
	start := time.Now()
	clock := resilience.NewManualClock(start)
	r := testRegistry(clock)

	for i := 0; i < 5; i++ {
		r.RecordFailure("k")
	}
	firstWindow := r.Snapshot()["k"].NextAttemptTime

	clock.Advance(61 * time.Second)
	if r.IsOpen("k") {
		t.Fatal("probe should be allowed after cooldown")
	}

	// The probe fails: the breaker re-opens immediately with a freshly
	// computed next attempt time.
	r.RecordFailure("k")
	if !r.IsOpen("k") {
		t.Fatal("breaker should re-open after failed probe")
	}
	secondWindow := r.Snapshot()["k"].NextAttemptTime
	if !secondWindow.After(firstWindow) {
		t.Errorf("next attempt time not refreshed: %v vs %v", secondWindow, firstWindow)
	}
}

func TestProbeSuccess_ClosesBreaker(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	for i := 0; i < 5; i++ {
		r.RecordFailure("k")
	}
	clock.Advance(61 * time.Second)
	if r.IsOpen("k") {
		t.Fatal("probe should be allowed after cooldown")
	}
	r.RecordSuccess("k")

	if r.IsOpen("k") {
		t.Error("breaker should close after successful probe")
	}
	if st := r.Snapshot()["k"]; st.FailureCount != 0 {
		t.Errorf("failure count = %d, want 0", st.FailureCount)
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	r.RecordFailure("a")
	r.RecordFailure("b")

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}
	if snap["a"].FailureCount != 1 {
		t.Errorf("a failure count = %d, want 1", snap["a"].FailureCount)
	}

	// Mutating the registry afterwards must not change the snapshot.
	r.RecordFailure("a")
	if snap["a"].FailureCount != 1 {
		t.Error("snapshot mutated by later registry activity")
	}
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	clock := resilience.NewManualClock(time.Now())
	r := testRegistry(clock)

	for i := 0; i < 5; i++ {
		r.RecordFailure("bad")
	}
	if !r.IsOpen("bad") {
		t.Fatal("bad key should be open")
	}
	if r.IsOpen("good") {
		t.Error("unrelated key must stay closed")
	}
}
