// Package syncserver exposes a remote.Store to websocket clients so viewers on
// several machines share one set of lists.
package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tasklist-cli/internal/remote"
)

type ServerConfig struct {
	Addr   string
	Store  remote.Store
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Registry receives the server's collectors; a fresh one is used when nil.
	Registry *prometheus.Registry

	// MaxClients caps concurrent websocket clients; 0 means no cap.
	MaxClients int
	// ConnectRate limits new connections per client IP (per second, with
	// ConnectBurst); 0 disables the limit.
	ConnectRate  float64
	ConnectBurst int
}

type Server struct {
	cfg     ServerConfig
	logger  *slog.Logger
	metrics *Metrics
	limiter *connectLimiter

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Store == nil {
		return nil, errors.New("syncserver: missing store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	m := NewMetrics()
	if err := m.Register(cfg.Registry); err != nil {
		return nil, err
	}
	srv := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "syncserver"),
		metrics:  m,
		sessions: make(map[*session]struct{}),
	}
	if cfg.ConnectRate > 0 {
		burst := cfg.ConnectBurst
		if burst <= 0 {
			burst = 1
		}
		srv.limiter = newConnectLimiter(cfg.ConnectRate, burst, cfg.Clock)
	}
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then disconnects every client.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.Addr == "" {
		return errors.New("syncserver: missing addr")
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("sync server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects every client and rejects new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	all := s.sessions
	s.sessions = make(map[*session]struct{})
	s.mu.Unlock()

	for sess := range all {
		sess.stop()
	}
}

// admit rejects a connection before the upgrade when a limit is hit.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
		s.metrics.Rejected.WithLabelValues("rate").Inc()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return false
	}
	if s.cfg.MaxClients > 0 && s.ClientCount() >= s.cfg.MaxClients {
		s.metrics.Rejected.WithLabelValues("capacity").Inc()
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) addSession(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.cfg.MaxClients > 0 && len(s.sessions) >= s.cfg.MaxClients {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.metrics.Connections.Set(float64(len(s.sessions)))
	return true
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
	s.metrics.Connections.Set(float64(len(s.sessions)))
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Clients: s.ClientCount()})
}
