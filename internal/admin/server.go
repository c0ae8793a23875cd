// Package admin serves the operational HTTP endpoint of a running language
// server: Prometheus metrics, index health and, when enabled, pprof.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mattmok/idea-spring-boot-assistant/internal/index"
	"github.com/mattmok/idea-spring-boot-assistant/internal/telemetry"
	"go.uber.org/zap"
)

// Indexes reports the modules whose health is served. *lifecycle.Manager
// implements it.
type Indexes interface {
	Modules() []string
	Get(moduleID string) (*index.Index, bool)
}

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. "localhost:9464"
	Address string
	// Pprof mounts the profiling endpoints under /debug/pprof
	Pprof bool

	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns a configuration listening on address
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReadHeaderTimeout: 10 * time.Second,
		// profiles run for up to 30s by default
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the admin HTTP server
type Server struct {
	httpServer *http.Server
	config     Config
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan error
}

// New creates a server. metrics and indexes may be nil.
func New(cfg Config, metrics *telemetry.Metrics, indexes Indexes, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           NewRouter(cfg, metrics, indexes, logger),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		config: cfg,
		logger: logger,
	}
}

// NewRouter returns the admin routes
func NewRouter(cfg Config, metrics *telemetry.Metrics, indexes Indexes, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(Recovery(logger), Logging(logger))

	r.Get("/healthz", healthHandler(indexes))
	if metrics.Enabled() {
		r.Handle("/metrics", metrics.Handler())
	}
	if cfg.Pprof {
		RegisterProfiling(r, "/debug/pprof")
	}
	return r
}

// Start listens and serves in the background. It returns once the listener
// is bound, so Addr reports the actual address.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.done = make(chan error, 1)
	done := s.done
	s.mu.Unlock()

	s.logger.Info("admin endpoint listening", zap.String("addr", listener.Addr().String()))
	go func() {
		err := s.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	return nil
}

// Shutdown gracefully stops the server and returns the serve error, if any
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return <-done
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}
