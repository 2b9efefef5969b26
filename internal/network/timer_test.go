package network

import (
	"testing"
	"time"
)

func TestTimer_OneShot(t *testing.T) {
	timer := NewTimer(38 * time.Millisecond)

	if fired := timer.Clock(100 * time.Millisecond); fired != 0 {
		t.Errorf("stopped timer fired %d times", fired)
	}

	timer.Start()
	if !timer.IsRunning() {
		t.Fatal("IsRunning() = false after Start()")
	}

	if fired := timer.Clock(37 * time.Millisecond); fired != 0 {
		t.Errorf("Clock(37ms) fired %d times, want 0", fired)
	}
	if remaining := timer.Remaining(); remaining != time.Millisecond {
		t.Errorf("Remaining() = %v, want 1ms", remaining)
	}
	if fired := timer.Clock(5 * time.Millisecond); fired != 1 {
		t.Errorf("Clock(5ms) fired %d times, want 1", fired)
	}
	if timer.IsRunning() {
		t.Error("one-shot timer still running after expiry")
	}
	if fired := timer.Clock(time.Second); fired != 0 {
		t.Errorf("expired one-shot fired again: %d", fired)
	}
}

func TestTimer_Refresh(t *testing.T) {
	timer := NewTimer(10 * time.Millisecond)
	timer.Start()

	for i := 0; i < 5; i++ {
		if fired := timer.Clock(8 * time.Millisecond); fired != 0 {
			t.Fatalf("step %d fired before timeout", i)
		}
		timer.Refresh()
	}

	if fired := timer.Clock(10 * time.Millisecond); fired != 1 {
		t.Errorf("Clock() after refresh fired %d, want 1", fired)
	}

	timer.Refresh()
	if timer.IsRunning() {
		t.Error("Refresh() restarted a stopped timer")
	}
}

func TestTimer_Periodic(t *testing.T) {
	timer := NewPeriodicTimer(33 * time.Millisecond)
	timer.Start()

	total := 0
	for i := 0; i < 100; i++ {
		total += timer.Clock(time.Millisecond)
	}
	if total != 3 {
		t.Errorf("periodic timer fired %d times in 100ms, want 3", total)
	}
	if !timer.IsRunning() {
		t.Error("periodic timer stopped after firing")
	}

	if fired := timer.Clock(70 * time.Millisecond); fired != 2 {
		t.Errorf("Clock(70ms) fired %d, want 2", fired)
	}

	timer.Stop()
	if fired := timer.Clock(time.Second); fired != 0 {
		t.Errorf("stopped periodic timer fired %d", fired)
	}
}
