package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vik-s/pymeasure/internal/auth"
	"github.com/vik-s/pymeasure/internal/config"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server is the HTTP API server.
type Server struct {
	httpServer   *http.Server
	orchestrator OrchestratorPort
	bench        BenchPort
	auth         *auth.Middleware
	metrics      http.Handler
	telemetry    TelemetryPort
	logger       hclog.Logger
	startTime    time.Time
	cfg          config.APIConfig
}

// Option configures a Server.
type Option func(*Server)

// WithAuth protects every route except health with m.
func WithAuth(m *auth.Middleware) Option {
	return func(s *Server) { s.auth = m }
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithTelemetry serves the event stream on /api/v1/events.
func WithTelemetry(t TelemetryPort) Option {
	return func(s *Server) { s.telemetry = t }
}

// WithLogger sets the request logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an API server.
func NewServer(cfg config.APIConfig, orchestrator OrchestratorPort, b BenchPort, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		bench:        b,
		auth:         auth.NewMiddleware(nil),
		logger:       hclog.NewNullLogger(),
		startTime:    time.Now(),
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(mux)
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("api listening", "addr", ln.Addr().String(), "auth", s.auth.Enabled())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
