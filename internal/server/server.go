// Package server hosts the management API, Prometheus metrics and health
// probes on one HTTP listener with graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/health"
	"github.com/felixgeelhaar/jacinta/internal/log"
)

// Config holds listener settings. Zero durations use the defaults below.
type Config struct {
	Address         string        `yaml:"address"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

const (
	DefaultAddress         = ":8080"
	DefaultShutdownTimeout = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Server serves api at the root, metrics at /metrics and the probes under
// /health.
type Server struct {
	httpServer *http.Server
	probes     *health.ProbeManager
	cfg        Config
	logger     *log.Logger
}

// New assembles the listener. api and metrics may be nil.
func New(cfg Config, api, metrics http.Handler, probes *health.ProbeManager, logger *log.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{probes: probes, cfg: cfg, logger: logger.With("component", "server")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", s.probe(probes.Liveness, http.StatusOK))
	mux.HandleFunc("GET /health/ready", s.probe(probes.Readiness, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /health/startup", s.probe(probes.Startup, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /healthz", s.probe(probes.Readiness, http.StatusServiceUnavailable))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if api != nil {
		mux.Handle("/", api)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on l until Shutdown. It marks the startup probe
// healthy once listening and returns nil after a graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.probes.MarkInitialized()
	s.logger.Info("listening", "address", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown fails readiness, stops accepting keep-alive requests and drains
// open connections for at most the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) probe(check func(context.Context) *health.ProbeResult, failStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := check(r.Context())
		status := http.StatusOK
		if res.Status == health.StatusUnhealthy {
			status = failStatus
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(res)
	}
}
