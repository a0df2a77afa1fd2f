package world

import (
	"testing"
	"time"
)

func TestIntervalTimerFires(t *testing.T) {
	t.Parallel()

	tm := NewIntervalTimer(100 * time.Millisecond)

	tm.Update(60 * time.Millisecond)
	if tm.Passed() {
		t.Fatalf("passed after 60ms of a 100ms interval")
	}
	tm.Update(40 * time.Millisecond)
	if !tm.Passed() {
		t.Fatalf("not passed after a full interval")
	}
	tm.Reset()
	if tm.Passed() {
		t.Fatalf("passed immediately after reset")
	}
	if got := tm.Current(); got != 0 {
		t.Fatalf("current = %v after exact-interval reset, want 0", got)
	}
}

func TestIntervalTimerResetKeepsRemainderModulo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		interval time.Duration
		elapsed  time.Duration
		want     time.Duration
	}{
		{"exact", 100 * time.Millisecond, 100 * time.Millisecond, 0},
		{"partial overshoot", 100 * time.Millisecond, 130 * time.Millisecond, 30 * time.Millisecond},
		{"long stall carries one period at most", 100 * time.Millisecond, 350 * time.Millisecond, 50 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tm := NewIntervalTimer(tc.interval)
			tm.Update(tc.elapsed)
			if !tm.Passed() {
				t.Fatalf("not passed after %v", tc.elapsed)
			}
			tm.Reset()
			if got := tm.Current(); got != tc.want {
				t.Fatalf("current after reset = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntervalTimerClampsNegative(t *testing.T) {
	t.Parallel()

	tm := NewIntervalTimer(time.Second)
	tm.Update(-5 * time.Second)
	if got := tm.Current(); got != 0 {
		t.Fatalf("current = %v after negative delta, want 0", got)
	}
}

func TestIntervalTimerStagger(t *testing.T) {
	t.Parallel()

	tm := NewIntervalTimer(time.Minute)
	tm.SetCurrent(59 * time.Second)
	tm.Update(time.Second)
	if !tm.Passed() {
		t.Fatalf("staggered timer did not fire at the shifted boundary")
	}
}
