package world

import "time"

// IntervalTimer is the countdown/repeat primitive behind every maintenance
// task. It is advanced only by the tick goroutine.
type IntervalTimer struct {
	interval time.Duration
	current  time.Duration
}

func NewIntervalTimer(interval time.Duration) *IntervalTimer {
	return &IntervalTimer{interval: interval}
}

// Update advances elapsed time. Negative deltas never occur with a monotonic
// tick clock; a negative accumulated value is clamped to zero anyway.
func (t *IntervalTimer) Update(delta time.Duration) {
	t.current += delta
	if t.current < 0 {
		t.current = 0
	}
}

// Passed reports whether at least one full period has elapsed.
func (t *IntervalTimer) Passed() bool {
	return t.current >= t.interval
}

// Reset consumes one elapsed period. Leftover time is kept modulo the
// period, so a long stall carries at most one period of catch-up instead of
// re-firing once per tick until the backlog drains.
func (t *IntervalTimer) Reset() {
	if t.interval > 0 && t.current >= t.interval {
		t.current %= t.interval
	} else {
		t.current = 0
	}
}

// SetInterval changes the period for subsequent cycles.
func (t *IntervalTimer) SetInterval(interval time.Duration) { t.interval = interval }

func (t *IntervalTimer) Interval() time.Duration { return t.interval }
func (t *IntervalTimer) Current() time.Duration  { return t.current }

// SetCurrent overrides elapsed time, used to stagger tasks at startup.
func (t *IntervalTimer) SetCurrent(current time.Duration) { t.current = current }
