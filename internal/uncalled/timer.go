package uncalled

import "time"

// Timer measures elapsed wall time in milliseconds
type Timer struct {
	start time.Time
	lap   time.Time
}

// NewTimer returns a running timer
func NewTimer() Timer {
	now := time.Now()
	return Timer{start: now, lap: now}
}

// Reset restarts the timer
func (t *Timer) Reset() {
	t.start = time.Now()
	t.lap = t.start
}

// Get returns milliseconds since the last Reset
func (t *Timer) Get() float32 {
	return float32(time.Since(t.start)) / float32(time.Millisecond)
}

// Lap returns milliseconds since the last Lap (or Reset)
func (t *Timer) Lap() float32 {
	now := time.Now()
	d := now.Sub(t.lap)
	t.lap = now
	return float32(d) / float32(time.Millisecond)
}
