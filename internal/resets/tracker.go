// Package resets computes and tracks recurring wall-clock boundaries
// (daily/weekly/monthly content resets). Each schedule persists its next
// occurrence under a stable key so boundaries survive process restarts
// without drifting or double-firing.
package resets

import (
	"context"
	"time"

	logx "worldgate/pkg/logx"
)

// Store is the durable key-value slice this package needs.
type Store interface {
	GetInt64(ctx context.Context, key string) (v int64, ok bool, err error)
	SetInt64(ctx context.Context, key string, v int64) error
}

type entry struct {
	key   string
	sched Schedule
	fire  func(now time.Time)
	next  time.Time
	dirty bool // persist failed; retried on the next due check
}

// Tracker holds all registered reset schedules. Register at startup, then
// CheckDue once per tick. Not safe for concurrent use; the tick goroutine
// owns it.
type Tracker struct {
	log     logx.Logger
	store   Store
	entries []*entry
}

func New(store Store, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{log: log, store: store}
}

// Register installs a schedule under a stable key, reconciling with the
// persisted next occurrence:
//   - unset/zero (first run): seed fresh from now and persist; NOT due;
//   - persisted and ≤ now (offline past the boundary): left as-is so the
//     next CheckDue fires it exactly once, then recomputes from the current
//     clock.
func (t *Tracker) Register(ctx context.Context, now time.Time, key string, sched Schedule, fire func(now time.Time)) error {
	v, ok, err := t.store.GetInt64(ctx, key)
	if err != nil {
		return err
	}
	e := &entry{key: key, sched: sched, fire: fire}
	if !ok || v == 0 {
		e.next = sched.Next(now)
		if err := t.store.SetInt64(ctx, key, e.next.Unix()); err != nil {
			e.dirty = true
			t.log.Warn("reset seed persist failed", logx.String("key", key), logx.Err(err))
		}
		t.log.Info("reset scheduled", logx.String("key", key), logx.Time("next", e.next))
	} else {
		e.next = time.Unix(v, 0)
		if !e.next.After(now) {
			t.log.Info("reset overdue from last run", logx.String("key", key), logx.Time("was", e.next))
		}
	}
	t.entries = append(t.entries, e)
	return nil
}

// CheckDue is a cheap per-tick comparison against every held schedule. A
// due entry fires its callback, then the new next occurrence is recomputed
// from the current clock and persisted before control returns. The in-memory
// value advances even if the persist fails, so an entry can never re-fire
// every tick during a store outage.
func (t *Tracker) CheckDue(ctx context.Context, now time.Time) {
	for _, e := range t.entries {
		if e.dirty {
			if err := t.store.SetInt64(ctx, e.key, e.next.Unix()); err == nil {
				e.dirty = false
			}
		}
		if now.Before(e.next) {
			continue
		}

		e.fire(now)

		next := e.sched.Next(now)
		if !next.After(now) {
			// Schedule contract violation; fail loudly rather than spin.
			panic("resets: recomputed occurrence not after now for key " + e.key)
		}
		e.next = next
		if err := t.store.SetInt64(ctx, e.key, next.Unix()); err != nil {
			e.dirty = true
			t.log.Warn("reset persist failed, will retry",
				logx.String("key", e.key), logx.Time("next", next), logx.Err(err))
			continue
		}
		t.log.Info("reset fired", logx.String("key", e.key), logx.Time("next", next))
	}
}

// Next reports the tracked next occurrence for a key, for observability.
func (t *Tracker) Next(key string) (time.Time, bool) {
	for _, e := range t.entries {
		if e.key == key {
			return e.next, true
		}
	}
	return time.Time{}, false
}
