// Package gateway exposes the websocket accept surface. It authenticates
// incoming clients, builds sessions, and hands them to the world's intake
// pipeline; after that the tick goroutine owns them.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"worldgate/internal/world"
	logx "worldgate/pkg/logx"
)

const authWait = 10 * time.Second

// Core is the slice of the world the gateway needs.
type Core interface {
	Submit(s *world.Session)
	SubmitLink(conn world.Conn, accountID uint32, token string)
	Post(fn func())
}

type Config struct {
	Addr      string
	JWTSecret string
}

type Service struct {
	cfg  Config
	core Core
	log  logx.Logger

	srv      *http.Server
	upgrader websocket.Upgrader
}

func New(cfg Config, core Core, log logx.Logger) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8085"
	}
	s := &Service{
		cfg:  cfg,
		core: core,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin policy is enforced upstream; game clients are
			// not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/link", s.handleLink)
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving until Stop is called or the listener fails.
func (s *Service) Start() error {
	s.log.Info("gateway listening", logx.String("addr", s.cfg.Addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// authFrame is the first message a client must send on either endpoint.
type authFrame struct {
	Token   string `json:"token"`
	Account uint32 `json:"account,omitempty"` // /link only
}

// handleSession upgrades the socket, verifies the client's JWT and submits
// a new session to intake. The connect token sent back lets the client bind
// a second socket via /link.
func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", logx.Err(err))
		return
	}

	frame, err := readAuthFrame(ws)
	if err != nil {
		s.log.Debug("session auth read failed", logx.Err(err))
		_ = ws.Close()
		return
	}
	claims, err := verifyToken(s.cfg.JWTSecret, frame.Token)
	if err != nil {
		s.log.Info("session auth rejected", logx.Err(err))
		_ = ws.WriteJSON(envelope{Type: "kicked", Reason: "authentication failed"})
		_ = ws.Close()
		return
	}

	conn := newWSConn(ws)
	connectToken := uuid.NewString()
	conn.enqueue(envelope{Type: "session", Token: connectToken})

	sess := world.NewSession(claims.Account, claims.Group, connectToken, conn)
	s.core.Submit(sess)
	s.log.Info("session submitted",
		logx.Uint32("account", claims.Account),
		logx.Uint32("group", claims.Group))

	go s.readLoop(conn, sess)
}

// handleLink accepts the secondary instance socket. The frame must carry the
// account id and the connect token from the /session handshake; matching is
// done on the tick goroutine.
func (s *Service) handleLink(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", logx.Err(err))
		return
	}

	frame, err := readAuthFrame(ws)
	if err != nil || frame.Account == 0 || frame.Token == "" {
		s.log.Debug("link auth read failed", logx.Err(err))
		_ = ws.Close()
		return
	}

	conn := newWSConn(ws)
	s.core.SubmitLink(conn, frame.Account, frame.Token)
	s.log.Info("instance link submitted", logx.Uint32("account", frame.Account))

	go drainLoop(conn)
}

func readAuthFrame(ws *websocket.Conn) (*authFrame, error) {
	_ = ws.SetReadDeadline(time.Now().Add(authWait))
	var frame authFrame
	if err := ws.ReadJSON(&frame); err != nil {
		return nil, err
	}
	if frame.Token == "" {
		return nil, errors.New("missing token")
	}
	_ = ws.SetReadDeadline(time.Time{})
	return &frame, nil
}

// readLoop pumps inbound frames. Any client traffic counts as activity;
// the touch is posted to the tick goroutine rather than applied here.
func (s *Service) readLoop(conn *wsConn, sess *world.Session) {
	ws := conn.ws
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			conn.markDead()
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.core.Post(func() { sess.Touch(time.Now()) })
	}
}

// drainLoop keeps the instance socket's read side serviced so pings and
// close frames are processed.
func drainLoop(conn *wsConn) {
	ws := conn.ws
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			conn.markDead()
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}
