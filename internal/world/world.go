package world

import (
	"context"
	"errors"
	"sync"
	"time"

	"worldgate/internal/resets"
	logx "worldgate/pkg/logx"
)

// Config holds the world's live-tunable settings. Mutated only on the tick
// goroutine (use Post to apply changes from elsewhere).
type Config struct {
	// PlayerLimit caps concurrently active sessions; 0 or negative means
	// unlimited and queueing never triggers.
	PlayerLimit int
	// IdleTimeout evicts sessions with no activity; 0 disables.
	IdleTimeout time.Duration
	// GraceWindow lets a recently disconnected account skip the queue on
	// reconnect. Disabled (0) by default.
	GraceWindow time.Duration
}

// PrivilegeChecker answers whether an account may bypass the capacity limit.
type PrivilegeChecker interface {
	HasCapacityBypass(accountID uint32) bool
}

// PrivilegeFunc adapts a plain function to PrivilegeChecker.
type PrivilegeFunc func(accountID uint32) bool

func (f PrivilegeFunc) HasCapacityBypass(accountID uint32) bool {
	if f == nil {
		return false
	}
	return f(accountID)
}

// Broadcaster receives global operator-facing messages (countdowns,
// cancellation notices). Implementations must not block.
type Broadcaster interface {
	Broadcast(msg string)
}

// KVStore is the slice of persistence the world itself touches (high-water
// counters). Reset schedules carry their own store.
type KVStore interface {
	SetInt64(ctx context.Context, key string, v int64) error
}

// maintenanceTask pairs an interval timer with its callback. The task table
// is iterated uniformly every tick; adding a periodic job is a data change.
type maintenanceTask struct {
	name  string
	timer *IntervalTimer
	run   func(now time.Time)
}

// Deps are the world's injected collaborators.
type Deps struct {
	Log    logx.Logger
	Store  KVStore
	Priv   PrivilegeChecker
	Sink   Broadcaster
	Resets *resets.Tracker
}

// World is the session admission controller and central tick scheduler.
type World struct {
	log logx.Logger
	cfg Config

	registry *registry
	queue    admissionQueue
	intake   intake

	priv     PrivilegeChecker
	sink     Broadcaster
	store    KVStore
	resets   *resets.Tracker
	shutdown shutdownController

	tasks []*maintenanceTask

	// async is the single re-entry point for fire-and-forget I/O results;
	// drained once per tick at a fixed pipeline position.
	asyncMu sync.Mutex
	async   []func()

	recentDisconnect map[uint32]time.Time

	maxActive int
	maxQueued int

	now   time.Time
	nowFn func() time.Time

	halted   chan struct{}
	haltOnce sync.Once
}

func New(cfg Config, deps Deps) *World {
	w := &World{
		log:              deps.Log,
		cfg:              cfg,
		registry:         newRegistry(),
		priv:             deps.Priv,
		sink:             deps.Sink,
		store:            deps.Store,
		resets:           deps.Resets,
		recentDisconnect: make(map[uint32]time.Time),
		nowFn:            time.Now,
		halted:           make(chan struct{}),
	}
	if w.log.IsZero() {
		w.log = logx.Nop()
	}
	if w.priv == nil {
		w.priv = PrivilegeFunc(nil)
	}
	w.now = w.nowFn()

	w.shutdown.broadcast = w.broadcast

	// Built-in maintenance. Anything else (watchdog keepalives, content
	// jobs) is added by the host through AddMaintenance.
	w.AddMaintenance("disconnect-grace-prune", time.Minute, w.pruneRecentDisconnects)
	w.AddMaintenance("session-counters", 5*time.Minute, w.persistCounters)

	return w
}

// AddMaintenance registers a periodic callback driven by the tick loop.
// Tick goroutine only (call before the loop starts, or via Post).
func (w *World) AddMaintenance(name string, every time.Duration, run func(now time.Time)) {
	w.tasks = append(w.tasks, &maintenanceTask{
		name:  name,
		timer: NewIntervalTimer(every),
		run:   run,
	})
}

// Submit hands a freshly authenticated session to the world. Safe from any
// goroutine; never blocks. Ownership of the session transfers here.
func (w *World) Submit(s *Session) { w.intake.submit(s) }

// SubmitLink hands over a late-binding instance connection to be matched to
// its session by token. Safe from any goroutine; never blocks.
func (w *World) SubmitLink(conn Conn, accountID uint32, token string) {
	w.intake.submitLink(conn, accountID, token)
}

// Post queues fn to run on the tick goroutine during the next Update. This
// is how async I/O completions and off-thread config changes re-enter the
// single-writer world. Safe from any goroutine; never blocks.
func (w *World) Post(fn func()) {
	if fn == nil {
		return
	}
	w.asyncMu.Lock()
	w.async = append(w.async, fn)
	w.asyncMu.Unlock()
}

// Update advances the world by one frame. Called once per server frame from
// the host loop; this is the only goroutine allowed in here.
func (w *World) Update(delta time.Duration) {
	now := w.nowFn()
	w.now = now

	// 1. Intake before anything reads the active count.
	sessions, links := w.intake.drain()
	for _, s := range sessions {
		w.addSession(s)
	}
	for _, l := range links {
		w.linkInstance(l)
	}

	// 2. Timer table. No cross-timer ordering is promised.
	for _, t := range w.tasks {
		t.timer.Update(delta)
		if t.timer.Passed() {
			t.run(now)
			t.timer.Reset()
		}
	}

	// 3. Calendar resets.
	if w.resets != nil {
		w.resets.CheckDue(context.Background(), now)
	}

	// 4. Per-session update and teardown.
	w.updateSessions(now)

	// 5. Async re-entry point.
	w.drainAsync()

	// 6. Shutdown evaluation.
	remain := w.registry.count()+w.queue.len() > 0
	if w.shutdown.evaluate(now, remain) {
		w.log.Info("world halting",
			logx.Int("exit_code", w.shutdown.exitCodeValue()),
			logx.Int("active", w.registry.count()),
			logx.Int("queued", w.queue.len()))
		w.haltOnce.Do(func() { close(w.halted) })
	}
}

func (w *World) updateSessions(now time.Time) {
	w.registry.each(func(s *Session) {
		if s.update(now, w.cfg.IdleTimeout) {
			return
		}
		w.registry.remove(s)
		w.recentDisconnect[s.accountID] = now
		reason := s.kickReason
		s.dispose()
		w.log.Info("session removed",
			logx.Uint32("account", s.accountID),
			logx.String("reason", reason),
			logx.Int("active", w.registry.count()))
		// Frees a slot: promote the queue head if there is room.
		w.removeFromQueue(s)
	})

	// Waiting sessions whose transports died leave the queue too.
	var dead []*Session
	w.queue.each(func(_ int, s *Session) {
		if !s.update(now, 0) {
			dead = append(dead, s)
		}
	})
	for _, s := range dead {
		w.removeFromQueue(s)
		s.dispose()
		w.log.Info("queued session removed", logx.Uint32("account", s.accountID))
	}
}

func (w *World) drainAsync() {
	w.asyncMu.Lock()
	fns := w.async
	w.async = nil
	w.asyncMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// broadcast fans a message out to the operator sink and to every active
// session. Safe from any goroutine (session fan-out is posted to the tick).
func (w *World) broadcast(msg string) {
	if w.sink != nil {
		w.sink.Broadcast(msg)
	}
	w.Post(func() {
		w.registry.each(func(s *Session) { s.sendText(msg) })
	})
}

// ---- Shutdown surface (safe from any goroutine) ----

// ShutdownAfter schedules a stop or restart. delay == 0 halts on the next
// tick with no countdown.
func (w *World) ShutdownAfter(delay time.Duration, mask ShutdownMask, exitCode int, reason string) bool {
	return w.shutdown.schedule(w.nowFn(), delay, mask, exitCode, reason)
}

// CancelShutdown clears a scheduled stop, reporting how much countdown was
// left. ok=false when nothing was scheduled (misuse is a boolean failure,
// not a panic).
func (w *World) CancelShutdown() (time.Duration, bool) {
	return w.shutdown.cancel(w.nowFn())
}

func (w *World) ShutdownScheduled() bool          { return w.shutdown.scheduled() }
func (w *World) ShutdownRemaining() time.Duration { return w.shutdown.remaining(w.nowFn()) }
func (w *World) Halted() <-chan struct{}          { return w.halted }
func (w *World) ExitCode() int                    { return w.shutdown.exitCodeValue() }

// ---- Tick-goroutine-only accessors ----

func (w *World) ActiveCount() int { return w.registry.count() }
func (w *World) QueuedCount() int { return w.queue.len() }
func (w *World) MaxActive() int   { return w.maxActive }
func (w *World) MaxQueued() int   { return w.maxQueued }

// KickSession force-disconnects an account. Tick goroutine only (wrap in
// Post from elsewhere). ErrSessionBusy means the session is mid-load and
// teardown happens on a later tick; the kick is not lost.
func (w *World) KickSession(accountID uint32, reason string) error {
	if s := w.registry.get(accountID); s != nil {
		return s.Kick(reason)
	}
	if s := w.queue.find(accountID); s != nil {
		return s.Kick(reason)
	}
	return errors.New("no such session")
}

// KickGroup force-disconnects every session sharing a group identifier
// (shared billing account bans). Tick goroutine only. Returns how many
// sessions were marked.
func (w *World) KickGroup(groupID uint32, reason string) int {
	n := 0
	for _, s := range w.registry.group(groupID) {
		_ = s.Kick(reason)
		n++
	}
	w.queue.each(func(_ int, s *Session) {
		if s.groupID == groupID {
			_ = s.Kick(reason)
			n++
		}
	})
	return n
}

// ApplyConfig swaps live-tunable settings. Tick goroutine only (wrap in
// Post). Raising the limit promotes waiting sessions immediately.
func (w *World) ApplyConfig(cfg Config) {
	w.cfg = cfg
	for !w.queue.empty() &&
		(w.cfg.PlayerLimit <= 0 || w.registry.count() < w.cfg.PlayerLimit) {
		w.removeFromQueue(nil)
	}
}

func (w *World) pruneRecentDisconnects(now time.Time) {
	keep := w.cfg.GraceWindow
	if keep <= 0 {
		keep = time.Minute
	}
	for id, t := range w.recentDisconnect {
		if now.Sub(t) >= keep {
			delete(w.recentDisconnect, id)
		}
	}
}

// persistCounters writes high-water marks without blocking the tick: the
// store call runs on its own goroutine and only the log line re-enters
// through the async queue.
func (w *World) persistCounters(time.Time) {
	if w.store == nil {
		return
	}
	maxActive, maxQueued := int64(w.maxActive), int64(w.maxQueued)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := errors.Join(
			w.store.SetInt64(ctx, "world.max_active", maxActive),
			w.store.SetInt64(ctx, "world.max_queued", maxQueued),
		)
		if err != nil {
			w.Post(func() {
				w.log.Warn("session counter persist failed", logx.Err(err))
			})
		}
	}()
}
