package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 32
)

// envelope is the wire frame pushed to clients.
type envelope struct {
	Type     string `json:"type"`
	Position int    `json:"position,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Msg      string `json:"msg,omitempty"`
	Token    string `json:"token,omitempty"`
}

// wsConn adapts a websocket to the session transport contract. All Notify*
// and SendText calls enqueue without blocking; a single writer goroutine
// owns the socket's write side.
type wsConn struct {
	ws    *websocket.Conn
	out   chan envelope
	alive atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:   ws,
		out:  make(chan envelope, sendBuffer),
		done: make(chan struct{}),
	}
	c.alive.Store(true)
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case env := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.alive.Store(false)
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.alive.Store(false)
				return
			}
		}
	}
}

// enqueue never blocks; if the client cannot keep up the frame is dropped
// and the connection is marked dead so the next session pass reaps it.
func (c *wsConn) enqueue(env envelope) {
	select {
	case c.out <- env:
	default:
		c.alive.Store(false)
	}
}

func (c *wsConn) NotifyQueued(position int) {
	c.enqueue(envelope{Type: "queued", Position: position})
}

func (c *wsConn) NotifyReady() {
	c.enqueue(envelope{Type: "ready"})
}

func (c *wsConn) NotifyKicked(reason string) {
	c.enqueue(envelope{Type: "kicked", Reason: reason})
}

func (c *wsConn) SendText(msg string) {
	c.enqueue(envelope{Type: "text", Msg: msg})
}

func (c *wsConn) Alive() bool { return c.alive.Load() }

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		c.alive.Store(false)
		close(c.done)
	})
}

// markDead flags the transport without tearing down the writer; used by the
// read loop on socket errors so teardown stays with the session owner.
func (c *wsConn) markDead() { c.alive.Store(false) }
