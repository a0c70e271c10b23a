// Package server exposes the chat orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
	"github.com/aixgo-dev/jenkinsbot/pkg/config"
	metrics "github.com/aixgo-dev/jenkinsbot/pkg/observability"
)

// maxBodyBytes bounds request bodies; questions are at most 2000 characters.
const maxBodyBytes = 1 << 20

// Server handles the chat API
type Server struct {
	orch     *chat.Orchestrator
	health   *metrics.HealthChecker
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *RateLimiter
	logger   zerolog.Logger

	addr            string
	corsOrigins     []string
	requestTimeout  time.Duration
	shutdownTimeout time.Duration

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records HTTP metrics into m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithHealthChecker serves the checker on /health/live, /health/ready and
// /health/detail.
func WithHealthChecker(hc *metrics.HealthChecker) Option {
	return func(s *Server) {
		s.health = hc
	}
}

// New creates a server for orch using cfg.
func New(cfg config.ServerConfig, orch *chat.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:            orch,
		logger:          zerolog.Nop(),
		addr:            cfg.Addr(),
		corsOrigins:     cfg.CORSOrigins,
		requestTimeout:  cfg.RequestTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "http").Logger()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.rateLimit(s.handleChat))
	mux.HandleFunc("POST /session/clear", s.handleClearSession)
	mux.HandleFunc("POST /session/cleanup", s.handleCleanup)

	if s.health != nil {
		mux.HandleFunc("GET /health/live", metrics.LivenessHandler())
		mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
		mux.HandleFunc("GET /health/detail", s.health.DetailHandler())
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.MetricsHandler(s.gatherer))
	}

	return s.logMiddleware(s.recoverMiddleware(s.corsMiddleware(mux)))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Run serves until ctx is done, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
