package world

import (
	"errors"
	"time"
)

// ErrSessionBusy is returned when a session cannot be torn down this tick
// because it is still loading game state. Removal is retried on the next
// session-update pass, never dropped.
var ErrSessionBusy = errors.New("session busy (loading)")

// Conn is the transport side of a session. Implementations must not block
// the tick goroutine: sends are expected to buffer or drop.
type Conn interface {
	// NotifyQueued tells the client it is waiting at the given 1-based position.
	NotifyQueued(position int)
	// NotifyReady tells the client its session is fully usable.
	NotifyReady()
	// NotifyKicked sends the kick reason before the transport is closed.
	NotifyKicked(reason string)
	// SendText delivers broadcast text (shutdown countdowns and the like).
	SendText(msg string)
	// Alive reports whether the transport is still usable.
	Alive() bool
	Close()
}

// Session is one authenticated client connection. It is created by the
// accept path, handed to the intake pipeline, and from then on owned
// exclusively by the tick goroutine. Two goroutines never mutate a session
// concurrently; ownership transfers fully at Submit time.
type Session struct {
	accountID uint32
	groupID   uint32
	token     string // shared secret for late socket linking

	conn     Conn
	instConn Conn // late-bound instance connection, may be nil

	queued     bool
	kicked     bool
	kickReason string
	loading    bool

	lastActive time.Time
}

func NewSession(accountID, groupID uint32, token string, conn Conn) *Session {
	return &Session{
		accountID:  accountID,
		groupID:    groupID,
		token:      token,
		conn:       conn,
		lastActive: time.Now(),
	}
}

func (s *Session) AccountID() uint32 { return s.accountID }
func (s *Session) GroupID() uint32   { return s.groupID }
func (s *Session) Queued() bool      { return s.queued }

// Kick marks the session for forced disconnect. The session stays
// addressable until the next session-update pass performs final teardown on
// the tick goroutine. Returns ErrSessionBusy while the session is loading;
// the kick still sticks and is honored once loading finishes.
func (s *Session) Kick(reason string) error {
	if !s.kicked {
		s.kicked = true
		s.kickReason = reason
	}
	if s.loading {
		return ErrSessionBusy
	}
	return nil
}

// Touch records client activity for idle eviction.
func (s *Session) Touch(now time.Time) { s.lastActive = now }

// BeginLoad/FinishLoad bracket game-state loading, during which teardown is
// deferred to avoid tearing state down mid-load.
func (s *Session) BeginLoad()  { s.loading = true }
func (s *Session) FinishLoad() { s.loading = false }

// update reports whether the session should stay alive. Called once per tick
// from the tick goroutine only.
func (s *Session) update(now time.Time, idleTimeout time.Duration) bool {
	if s.loading {
		// Teardown deferred; re-checked next tick.
		return true
	}
	if s.kicked {
		return false
	}
	if s.conn != nil && !s.conn.Alive() {
		return false
	}
	if idleTimeout > 0 && !s.queued && now.Sub(s.lastActive) > idleTimeout {
		s.kicked = true
		s.kickReason = "idle"
		return false
	}
	return true
}

// attachInstance binds a late-arriving instance connection after its token
// was verified by the intake drain.
func (s *Session) attachInstance(conn Conn) {
	if s.instConn != nil {
		s.instConn.Close()
	}
	s.instConn = conn
	conn.NotifyReady()
}

// dispose releases transport resources. Tick goroutine only.
func (s *Session) dispose() {
	if s.kicked && s.kickReason != "" && s.conn != nil {
		s.conn.NotifyKicked(s.kickReason)
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.instConn != nil {
		s.instConn.Close()
		s.instConn = nil
	}
}

func (s *Session) sendText(msg string) {
	if s.conn != nil {
		s.conn.SendText(msg)
	}
}
