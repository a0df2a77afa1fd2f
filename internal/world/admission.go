package world

import (
	"time"

	logx "worldgate/pkg/logx"
)

// addSession is the core admission algorithm, run at intake drain time.
//
// Capacity accounting note: the incoming session never pays for a slot it
// already held. Evicting a still-queued duplicate keeps the full count (that
// duplicate was never active); in every other case the incoming session is
// excluded from the count, so a plain reconnect of an active account cannot
// trip the limit.
func (w *World) addSession(s *Session) {
	now := w.now
	evictedQueued := false

	if prev := w.registry.get(s.accountID); prev != nil {
		// Re-login evicts the prior session. Registry mutation is
		// single-threaded, so teardown is synchronous here.
		_ = prev.Kick("logged in from another location")
		w.registry.remove(prev)
		prev.dispose()
		w.log.Debug("duplicate session evicted", logx.Uint32("account", prev.accountID))
	} else if prev := w.queue.find(s.accountID); prev != nil {
		// Prior session was still waiting; it never counted as active.
		w.queue.remove(prev)
		prev.queued = false
		_ = prev.Kick("logged in from another location")
		prev.dispose()
		evictedQueued = true
		w.announceQueuePositions()
		w.log.Debug("queued duplicate evicted", logx.Uint32("account", prev.accountID))
	}

	w.registry.put(s)
	s.Touch(now)

	occupied := w.registry.count() + w.queue.len()
	if !evictedQueued {
		occupied-- // exclude the incoming session itself
	}

	limit := w.cfg.PlayerLimit
	if limit > 0 && occupied >= limit &&
		!w.priv.HasCapacityBypass(s.accountID) &&
		!w.recentlyDisconnected(now, s.accountID) {
		// At capacity: park the session in the waiting queue. A session
		// lives in at most one of registry/queue.
		w.registry.remove(s)
		s.queued = true
		pos := w.queue.push(s)
		if s.conn != nil {
			s.conn.NotifyQueued(pos)
		}
		if n := w.queue.len(); n > w.maxQueued {
			w.maxQueued = n
		}
		w.log.Info("session queued",
			logx.Uint32("account", s.accountID),
			logx.Int("position", pos),
			logx.Int("active", w.registry.count()))
		return
	}

	w.activate(s)
}

// activate marks a session fully usable, both for fresh admissions and for
// promotions out of the queue.
func (w *World) activate(s *Session) {
	s.queued = false
	if w.registry.get(s.accountID) != s {
		w.registry.put(s)
	}
	if s.conn != nil {
		s.conn.NotifyReady()
	}
	if n := w.registry.count(); n > w.maxActive {
		w.maxActive = n
	}
	w.log.Info("session active",
		logx.Uint32("account", s.accountID),
		logx.Uint32("group", s.groupID),
		logx.Int("active", w.registry.count()))
}

// removeFromQueue serves two callers: a waiting session leaving the queue,
// and an active session leaving the registry (which frees a slot). In the
// second case the queue head is promoted when there is room. Either way the
// remaining waiters get fresh position numbers.
func (w *World) removeFromQueue(s *Session) bool {
	pos := 0
	if s != nil {
		pos = w.queue.remove(s)
	}
	if pos > 0 {
		s.queued = false
	} else if (w.cfg.PlayerLimit <= 0 || w.registry.count() < w.cfg.PlayerLimit) && !w.queue.empty() {
		next := w.queue.popFront()
		w.activate(next)
	}
	w.announceQueuePositions()
	return pos > 0
}

func (w *World) announceQueuePositions() {
	w.queue.each(func(pos int, qs *Session) {
		if qs.conn != nil {
			qs.conn.NotifyQueued(pos)
		}
	})
}

func (w *World) recentlyDisconnected(now time.Time, accountID uint32) bool {
	if w.cfg.GraceWindow <= 0 {
		return false
	}
	t, ok := w.recentDisconnect[accountID]
	if !ok {
		return false
	}
	return now.Sub(t) < w.cfg.GraceWindow
}

// linkInstance matches a late-binding connection to a registered session by
// its shared secret token. A mismatch is terminal for that socket only.
func (w *World) linkInstance(l linkRequest) {
	s := w.registry.get(l.accountID)
	if s == nil || s.kicked || s.token != l.token {
		l.conn.NotifyKicked("authentication timed out")
		l.conn.Close()
		w.log.Warn("instance link rejected", logx.Uint32("account", l.accountID))
		return
	}
	s.attachInstance(l.conn)
	w.log.Debug("instance link attached", logx.Uint32("account", l.accountID))
}
