package resets

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "worldgate/pkg/logx"
)

type memStore struct {
	vals    map[string]int64
	failSet bool
}

func newMemStore() *memStore { return &memStore{vals: make(map[string]int64)} }

func (m *memStore) GetInt64(_ context.Context, key string) (int64, bool, error) {
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *memStore) SetInt64(_ context.Context, key string, v int64) error {
	if m.failSet {
		return errors.New("store down")
	}
	m.vals[key] = v
	return nil
}

func TestFirstRunSeedsWithoutFiring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	tr := New(store, logx.Nop())

	sched := mustDaily(t, 6)
	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	fired := 0
	if err := tr.Register(ctx, now, "reset.daily", sched, func(time.Time) { fired++ }); err != nil {
		t.Fatalf("register: %v", err)
	}

	tr.CheckDue(ctx, now)
	if fired != 0 {
		t.Fatalf("fired %d times on first run, want 0", fired)
	}

	want := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	if next, ok := tr.Next("reset.daily"); !ok || !next.Equal(want) {
		t.Fatalf("next = %v ok=%v, want %v", next, ok, want)
	}
	if store.vals["reset.daily"] != want.Unix() {
		t.Fatalf("persisted %d, want %d", store.vals["reset.daily"], want.Unix())
	}
}

func TestStaleBoundaryFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	// Last run scheduled the boundary for 06:00; the process was down past it.
	missed := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	store.vals["reset.daily"] = missed.Unix()

	tr := New(store, logx.Nop())
	sched := mustDaily(t, 6)
	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	fired := 0
	if err := tr.Register(ctx, now, "reset.daily", sched, func(time.Time) { fired++ }); err != nil {
		t.Fatalf("register: %v", err)
	}

	tr.CheckDue(ctx, now)
	if fired != 1 {
		t.Fatalf("fired %d times for one missed boundary, want 1", fired)
	}

	// Recomputed from the current clock, not from the stale value.
	want := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	if next, _ := tr.Next("reset.daily"); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	tr.CheckDue(ctx, now)
	tr.CheckDue(ctx, now.Add(time.Hour))
	if fired != 1 {
		t.Fatalf("fired %d times total, want 1", fired)
	}
}

func TestPersistFailureDoesNotRefire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	missed := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	store.vals["reset.daily"] = missed.Unix()

	tr := New(store, logx.Nop())
	sched := mustDaily(t, 6)
	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	fired := 0
	if err := tr.Register(ctx, now, "reset.daily", sched, func(time.Time) { fired++ }); err != nil {
		t.Fatalf("register: %v", err)
	}

	store.failSet = true
	tr.CheckDue(ctx, now)
	if fired != 1 {
		t.Fatalf("fired %d, want 1", fired)
	}

	// The in-memory value advanced despite the failed persist.
	tr.CheckDue(ctx, now.Add(time.Minute))
	if fired != 1 {
		t.Fatalf("refired during store outage (fired=%d)", fired)
	}

	// Store recovers; the dirty entry is flushed on the next check.
	store.failSet = false
	tr.CheckDue(ctx, now.Add(2*time.Minute))
	want := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	if store.vals["reset.daily"] != want.Unix() {
		t.Fatalf("persisted %d after recovery, want %d", store.vals["reset.daily"], want.Unix())
	}
}

func TestPersistedFutureValueSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	future := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	store.vals["reset.daily"] = future.Unix()

	tr := New(store, logx.Nop())
	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	fired := 0
	if err := tr.Register(ctx, now, "reset.daily", mustDaily(t, 6), func(time.Time) { fired++ }); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The persisted boundary is authoritative, not recomputed.
	if next, _ := tr.Next("reset.daily"); !next.Equal(future) {
		t.Fatalf("next = %v, want persisted %v", next, future)
	}
	tr.CheckDue(ctx, now)
	if fired != 0 {
		t.Fatalf("fired %d before the persisted boundary, want 0", fired)
	}

	// Past the boundary it fires once and advances.
	tr.CheckDue(ctx, future.Add(time.Minute))
	if fired != 1 {
		t.Fatalf("fired %d after the boundary, want 1", fired)
	}
}

func TestMultipleSchedulesIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	tr := New(store, logx.Nop())

	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	missed := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	store.vals["reset.daily"] = missed.Unix()

	dailyFired, weeklyFired := 0, 0
	daily := mustDaily(t, 6)
	weekly, err := Weekly(4, time.Wednesday, time.UTC)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}

	if err := tr.Register(ctx, now, "reset.daily", daily, func(time.Time) { dailyFired++ }); err != nil {
		t.Fatalf("register daily: %v", err)
	}
	if err := tr.Register(ctx, now, "reset.weekly", weekly, func(time.Time) { weeklyFired++ }); err != nil {
		t.Fatalf("register weekly: %v", err)
	}

	tr.CheckDue(ctx, now)
	if dailyFired != 1 || weeklyFired != 0 {
		t.Fatalf("fired daily=%d weekly=%d, want 1/0", dailyFired, weeklyFired)
	}
}

func TestNextUnknownKey(t *testing.T) {
	t.Parallel()

	tr := New(newMemStore(), logx.Nop())
	if _, ok := tr.Next("missing"); ok {
		t.Fatalf("unknown key reported ok")
	}
}
