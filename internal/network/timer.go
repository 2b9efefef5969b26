package network

import "time"

// Timer is a clock-driven timer. It never reads the wall clock itself;
// the owner advances it with Clock, so every expiry happens on the owner's
// goroutine in the order the owner chooses.
type Timer struct {
	timeout  time.Duration
	elapsed  time.Duration
	running  bool
	periodic bool
}

// NewTimer creates a stopped one-shot timer
func NewTimer(timeout time.Duration) *Timer {
	return &Timer{timeout: timeout}
}

// NewPeriodicTimer creates a stopped timer that re-arms itself on expiry
func NewPeriodicTimer(period time.Duration) *Timer {
	return &Timer{timeout: period, periodic: true}
}

// SetTimeout changes the timeout without restarting
func (t *Timer) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Timeout returns the configured timeout
func (t *Timer) Timeout() time.Duration {
	return t.timeout
}

// IsRunning returns true if the timer is counting
func (t *Timer) IsRunning() bool {
	return t.running
}

// Start starts the timer from zero
func (t *Timer) Start() {
	t.elapsed = 0
	t.running = true
}

// Refresh restarts a running timer from zero. It does nothing if the timer
// is stopped.
func (t *Timer) Refresh() {
	if t.running {
		t.elapsed = 0
	}
}

// Stop stops the timer
func (t *Timer) Stop() {
	t.running = false
	t.elapsed = 0
}

// Clock advances the timer and returns how many times it expired during
// elapsed. A one-shot timer expires at most once and then stops; a periodic
// timer keeps the remainder so its phase does not drift.
func (t *Timer) Clock(elapsed time.Duration) int {
	if !t.running || t.timeout <= 0 {
		return 0
	}

	t.elapsed += elapsed
	if t.elapsed < t.timeout {
		return 0
	}

	if !t.periodic {
		t.running = false
		t.elapsed = 0
		return 1
	}

	fired := int(t.elapsed / t.timeout)
	t.elapsed %= t.timeout
	return fired
}

// Remaining returns the time left until the next expiry, or 0 if stopped
func (t *Timer) Remaining() time.Duration {
	if !t.running {
		return 0
	}
	if remaining := t.timeout - t.elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
