package clock

import (
	"testing"
	"time"
)

func TestFakeFiresOnlyDueTimers(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	var fired []string
	fake.AfterFunc(2*time.Minute, func() { fired = append(fired, "late") })
	fake.AfterFunc(time.Minute, func() { fired = append(fired, "early") })

	fake.Advance(59 * time.Second)
	if len(fired) != 0 {
		t.Fatalf("expected nothing fired, got %v", fired)
	}
	fake.Advance(2 * time.Minute)
	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("unexpected firing order %v", fired)
	}
	if fake.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestFakeStop(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatalf("expected stop of pending timer to succeed")
	}
	if timer.Stop() {
		t.Fatalf("second stop should report false")
	}
	fake.Advance(time.Minute)
	if fired {
		t.Fatalf("stopped timer fired")
	}
}

func TestRealClockTimerStops(t *testing.T) {
	timer := Real().AfterFunc(time.Hour, func() {})
	if !timer.Stop() {
		t.Fatalf("expected real timer to stop")
	}
}
