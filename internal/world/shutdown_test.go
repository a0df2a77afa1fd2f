package world

import (
	"strings"
	"testing"
	"time"
)

func halted(w *World) bool {
	select {
	case <-w.Halted():
		return true
	default:
		return false
	}
}

func TestImmediateShutdownHaltsNextTick(t *testing.T) {
	t.Parallel()

	w, clk, sink := newTestWorld(Config{})

	if !w.ShutdownAfter(0, ShutdownForce, ExitShutdown, "") {
		t.Fatalf("schedule rejected")
	}
	if halted(w) {
		t.Fatalf("halted before any tick")
	}
	tick(w, clk)

	if !halted(w) {
		t.Fatalf("not halted after tick")
	}
	if w.ExitCode() != ExitShutdown {
		t.Fatalf("exit code = %d, want %d", w.ExitCode(), ExitShutdown)
	}
	if msgs := sink.all(); len(msgs) != 0 {
		t.Fatalf("immediate shutdown broadcast a countdown: %v", msgs)
	}
}

func TestImmediateRestart(t *testing.T) {
	t.Parallel()

	w, clk, sink := newTestWorld(Config{})

	w.ShutdownAfter(0, ShutdownRestart, ExitRestart, "deploy")
	tick(w, clk)

	if !halted(w) {
		t.Fatalf("not halted")
	}
	if w.ExitCode() != ExitRestart {
		t.Fatalf("exit code = %d, want %d", w.ExitCode(), ExitRestart)
	}
	if msgs := sink.all(); len(msgs) != 0 {
		t.Fatalf("immediate restart broadcast a countdown: %v", msgs)
	}
}

func TestCountdownBroadcastsImmediately(t *testing.T) {
	t.Parallel()

	w, _, sink := newTestWorld(Config{})

	w.ShutdownAfter(10*time.Minute, 0, ExitShutdown, "maintenance")

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("broadcasts = %v, want one initial countdown", msgs)
	}
	if !strings.Contains(msgs[0], "shutting down in 10m0s") || !strings.Contains(msgs[0], "maintenance") {
		t.Fatalf("countdown message = %q", msgs[0])
	}
}

func TestRestartCountdownWording(t *testing.T) {
	t.Parallel()

	w, _, sink := newTestWorld(Config{})

	w.ShutdownAfter(5*time.Minute, ShutdownRestart, ExitRestart, "")

	msgs := sink.all()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "restarting in 5m0s") {
		t.Fatalf("restart countdown = %v", msgs)
	}
}

func TestCancelShutdown(t *testing.T) {
	t.Parallel()

	w, _, sink := newTestWorld(Config{})

	w.ShutdownAfter(10*time.Minute, 0, ExitShutdown, "")
	remaining, ok := w.CancelShutdown()
	if !ok {
		t.Fatalf("cancel of a scheduled stop failed")
	}
	if remaining <= 9*time.Minute || remaining > 10*time.Minute {
		t.Fatalf("remaining = %v, want ~10m", remaining)
	}
	if w.ShutdownScheduled() {
		t.Fatalf("still scheduled after cancel")
	}

	if _, ok := w.CancelShutdown(); ok {
		t.Fatalf("cancel with nothing scheduled reported ok")
	}

	msgs := sink.all()
	if len(msgs) == 0 || msgs[len(msgs)-1] != "Server shutdown cancelled." {
		t.Fatalf("broadcasts = %v, want trailing cancellation notice", msgs)
	}
}

func TestCancelRestartWording(t *testing.T) {
	t.Parallel()

	w, _, sink := newTestWorld(Config{})

	w.ShutdownAfter(time.Hour, ShutdownRestart, ExitRestart, "")
	if _, ok := w.CancelShutdown(); !ok {
		t.Fatalf("cancel failed")
	}

	msgs := sink.all()
	if msgs[len(msgs)-1] != "Server restart cancelled." {
		t.Fatalf("broadcasts = %v, want restart cancellation notice", msgs)
	}
	// Exit code resets along with the schedule.
	if w.ExitCode() != ExitShutdown {
		t.Fatalf("exit code = %d after cancel, want %d", w.ExitCode(), ExitShutdown)
	}
}

func TestIdleShutdownWaitsForDrain(t *testing.T) {
	t.Parallel()

	w, clk, sink := newTestWorld(Config{})

	_, ca := submit(w, clk, 1, "a")

	w.ShutdownAfter(0, ShutdownIdle, ExitShutdown, "")
	tick(w, clk)
	if halted(w) {
		t.Fatalf("idle shutdown halted with a session still online")
	}
	if msgs := sink.all(); len(msgs) != 0 {
		t.Fatalf("idle shutdown broadcast countdowns: %v", msgs)
	}

	// The last session leaves; the deferred deadline lapses and we halt.
	ca.alive = false
	tick(w, clk)
	clk.advance(2 * time.Second)
	w.Update(2 * time.Second)

	if !halted(w) {
		t.Fatalf("idle shutdown did not halt after drain")
	}
}

func TestForceOverridesIdleWait(t *testing.T) {
	t.Parallel()

	w, clk, _ := newTestWorld(Config{})

	submit(w, clk, 1, "a")

	w.ShutdownAfter(0, ShutdownIdle|ShutdownForce, ExitShutdown, "")
	tick(w, clk)

	if !halted(w) {
		t.Fatalf("forced halt deferred by idle wait")
	}
}

func TestScheduleRejectedWhileHalting(t *testing.T) {
	t.Parallel()

	w, clk, _ := newTestWorld(Config{})

	w.ShutdownAfter(0, ShutdownForce, ExitShutdown, "")
	tick(w, clk)

	if w.ShutdownAfter(time.Minute, 0, ExitShutdown, "late") {
		t.Fatalf("re-arm accepted after halting began")
	}
	if _, ok := w.CancelShutdown(); ok {
		t.Fatalf("cancel accepted after halting began")
	}
}

func TestWarnIntervalBands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remaining time.Duration
		want      time.Duration
	}{
		{90 * time.Second, 15 * time.Second},
		{10 * time.Minute, time.Minute},
		{20 * time.Minute, 5 * time.Minute},
		{6 * time.Hour, time.Hour},
		{24 * time.Hour, 12 * time.Hour},
	}
	for _, tc := range cases {
		if got := warnInterval(tc.remaining); got != tc.want {
			t.Errorf("warnInterval(%v) = %v, want %v", tc.remaining, got, tc.want)
		}
	}
}

func TestCountdownCadence(t *testing.T) {
	t.Parallel()

	w, clk, sink := newTestWorld(Config{})

	w.ShutdownAfter(2*time.Minute, 0, ExitShutdown, "")
	before := len(sink.all()) // the initial announcement

	// Inside the final five minutes the cadence is one message per 15s.
	for i := 0; i < 30; i++ {
		clk.advance(time.Second)
		w.Update(time.Second)
	}

	got := len(sink.all()) - before
	if got != 2 {
		t.Fatalf("countdown messages in 30s = %d, want 2", got)
	}
}
