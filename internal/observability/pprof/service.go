// Package pprof serves the runtime profiling endpoints on a separate
// listener so the game gateway port never exposes them.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	logx "worldgate/pkg/logx"
)

// Config controls the optional profiling HTTP server.
//
// Binding to a non-loopback address requires a token; there is no
// allow-insecure escape hatch.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

type Service struct {
	cfg Config
	log logx.Logger
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6060"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Start blocks serving until Stop is called. Refuses to listen on a
// non-loopback address without a token.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.Token == "" && !isLoopbackAddr(s.cfg.Addr) {
		return errors.New("pprof: non-loopback addr requires a token")
	}

	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return s.withAuth(h) }
	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))

	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}
	s.log.Info("pprof listening", logx.String("addr", s.cfg.Addr),
		logx.Bool("token_set", s.cfg.Token != ""))

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Service) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got == tok {
			h(w, r)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) &&
			strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
