package world

import (
	"sync"
	"time"
)

// ShutdownMask selects how a scheduled stop behaves. Restart vs plain stop
// only changes the user-facing message variant and the process exit code.
type ShutdownMask uint8

const (
	// ShutdownRestart makes the halt an intentional restart (exit code picked
	// up by the service manager to relaunch).
	ShutdownRestart ShutdownMask = 1 << iota
	// ShutdownIdle defers the halt until no sessions remain and suppresses
	// countdown messages while waiting.
	ShutdownIdle
	// ShutdownForce halts at the deadline even if sessions remain.
	ShutdownForce
)

// Process exit codes reported through ExitCode after halting.
const (
	ExitShutdown = 0
	ExitError    = 1
	ExitRestart  = 2
)

type shutdownPhase uint8

const (
	phaseIdle shutdownPhase = iota
	phaseScheduled
	phaseHalting
)

// shutdownController is the one piece of world state reachable from outside
// the tick goroutine: operators schedule and cancel stops from admin
// surfaces, so its state sits behind its own narrow mutex. Evaluate is still
// called only by the tick goroutine.
type shutdownController struct {
	mu sync.Mutex

	phase    shutdownPhase
	fireAt   time.Time
	mask     ShutdownMask
	exitCode int
	reason   string
	lastWarn time.Time

	// broadcast must be non-blocking; set once before first use.
	broadcast func(msg string)
}

// schedule arms a stop. delay == 0 fires on the next evaluate with no
// countdown message; otherwise an initial countdown is broadcast
// immediately. Returns false once halting (too late to re-arm).
func (c *shutdownController) schedule(now time.Time, delay time.Duration, mask ShutdownMask, exitCode int, reason string) bool {
	c.mu.Lock()
	if c.phase == phaseHalting {
		c.mu.Unlock()
		return false
	}
	c.phase = phaseScheduled
	c.mask = mask
	c.exitCode = exitCode
	c.reason = reason
	var msg string
	if delay <= 0 {
		c.fireAt = now
	} else {
		c.fireAt = now.Add(delay)
		c.lastWarn = now
		if mask&ShutdownIdle == 0 {
			msg = countdownMessage(mask, delay, reason)
		}
	}
	c.mu.Unlock()

	if msg != "" && c.broadcast != nil {
		c.broadcast(msg)
	}
	return true
}

// evaluate advances the state machine one tick. Returns true exactly once,
// on the transition to halting.
func (c *shutdownController) evaluate(now time.Time, sessionsRemain bool) bool {
	c.mu.Lock()
	if c.phase != phaseScheduled {
		c.mu.Unlock()
		return false
	}

	if !now.Before(c.fireAt) {
		if c.mask&ShutdownIdle != 0 && c.mask&ShutdownForce == 0 && sessionsRemain {
			// Still draining; re-check next tick.
			c.fireAt = now.Add(time.Second)
			c.mu.Unlock()
			return false
		}
		c.phase = phaseHalting
		c.mu.Unlock()
		return true
	}

	// Countdown messaging. Idle-wait stops halt quietly.
	var msg string
	if c.mask&ShutdownIdle == 0 {
		remaining := c.fireAt.Sub(now)
		gap := warnInterval(remaining)
		if gap < time.Second {
			gap = time.Second
		}
		if now.Sub(c.lastWarn) >= gap {
			c.lastWarn = now
			msg = countdownMessage(c.mask, remaining, c.reason)
		}
	}
	c.mu.Unlock()

	if msg != "" && c.broadcast != nil {
		c.broadcast(msg)
	}
	return false
}

// cancel clears a scheduled stop and reports the remaining time that was
// cancelled. Returns ok=false when nothing was scheduled or halting already
// began.
func (c *shutdownController) cancel(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	if c.phase != phaseScheduled {
		c.mu.Unlock()
		return 0, false
	}
	remaining := c.fireAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	restart := c.mask&ShutdownRestart != 0

	c.phase = phaseIdle
	c.fireAt = time.Time{}
	c.mask = 0
	c.exitCode = ExitShutdown
	c.reason = ""
	c.lastWarn = time.Time{}
	c.mu.Unlock()

	if c.broadcast != nil {
		if restart {
			c.broadcast("Server restart cancelled.")
		} else {
			c.broadcast("Server shutdown cancelled.")
		}
	}
	return remaining, true
}

func (c *shutdownController) scheduled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseScheduled
}

func (c *shutdownController) halting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseHalting
}

func (c *shutdownController) remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseScheduled {
		return 0
	}
	d := c.fireAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

func (c *shutdownController) exitCodeValue() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// warnInterval is the countdown cadence: denser messaging as the deadline
// nears.
func warnInterval(remaining time.Duration) time.Duration {
	switch {
	case remaining < 5*time.Minute:
		return 15 * time.Second
	case remaining < 15*time.Minute:
		return time.Minute
	case remaining < 30*time.Minute:
		return 5 * time.Minute
	case remaining < 12*time.Hour:
		return time.Hour
	default:
		return 12 * time.Hour
	}
}

func countdownMessage(mask ShutdownMask, remaining time.Duration, reason string) string {
	verb := "shutting down"
	if mask&ShutdownRestart != 0 {
		verb = "restarting"
	}
	msg := "Server " + verb + " in " + remaining.Round(time.Second).String()
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return msg
}
