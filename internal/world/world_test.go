package world

import (
	"sync"
	"time"
)

// fakeConn records every notification for assertions.
type fakeConn struct {
	alive      bool
	positions  []int
	ready      int
	kickReason string
	texts      []string
	closed     bool
}

func newFakeConn() *fakeConn { return &fakeConn{alive: true} }

func (c *fakeConn) NotifyQueued(position int)  { c.positions = append(c.positions, position) }
func (c *fakeConn) NotifyReady()               { c.ready++ }
func (c *fakeConn) NotifyKicked(reason string) { c.kickReason = reason }
func (c *fakeConn) SendText(msg string)        { c.texts = append(c.texts, msg) }
func (c *fakeConn) Alive() bool                { return c.alive }
func (c *fakeConn) Close()                     { c.closed = true }

func (c *fakeConn) lastPos() int {
	if len(c.positions) == 0 {
		return 0
	}
	return c.positions[len(c.positions)-1]
}

// recSink collects broadcasts; the shutdown path may call it from the
// scheduling goroutine.
type recSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *recSink) Broadcast(msg string) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *recSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// testClock gives tests a hand-cranked time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestWorld(cfg Config) (*World, *testClock, *recSink) {
	clk := newTestClock()
	sink := &recSink{}
	w := New(cfg, Deps{Sink: sink})
	w.nowFn = clk.Now
	w.now = clk.Now()
	return w, clk, sink
}

// tick runs one frame with a nominal delta.
func tick(w *World, clk *testClock) {
	clk.advance(50 * time.Millisecond)
	w.Update(50 * time.Millisecond)
}
