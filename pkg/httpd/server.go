// Package httpd assembles HTTP/1.x requests from a byte stream into a
// single per-message buffer and hands handlers a zero-copy view of it.
package httpd

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ssungk/ehttpd/pkg/httpd/buf"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server owns the configuration shared by all sessions.
type Server struct {
	cfg     Config
	loop    EventLoop
	handler Handler
	logger  *slog.Logger
	metrics *Metrics
	limits  atomic.Pointer[buf.Limits]
}

// NewServer validates cfg and creates a server. It fails before any
// connection is accepted if the configuration is unusable.
func NewServer(cfg Config, loop EventLoop, handler Handler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required: %w", ErrInvalidConfig)
	}
	if loop == nil {
		return nil, fmt.Errorf("event loop is required: %w", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		loop:    loop,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	limits := cfg.BufferLimits()
	s.limits.Store(&limits)
	return s, nil
}

// Config returns the configuration the server was built with.
func (s *Server) Config() Config {
	return s.cfg
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Metrics returns the server metrics, possibly nil.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe runs the event loop until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "addr", s.cfg.Addr(), "backlog", s.cfg.Backlog)

	if err := s.loop.Run(ctx, s); err != nil {
		return fmt.Errorf("event loop: %w: %w", ErrTransport, err)
	}

	s.logger.Info("HTTP server stopped", "addr", s.cfg.Addr())
	return nil
}

// SetBufferLimits replaces the request buffer limits. Sessions pick up
// the new limits on their next read.
func (s *Server) SetBufferLimits(limits buf.Limits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("buffer limits: %w: %w", ErrInvalidConfig, err)
	}
	s.limits.Store(&limits)
	s.logger.Info("Request buffer limits updated",
		"increaseUnit", limits.IncreaseUnit, "maxSize", limits.MaxSize)
	return nil
}

// BufferLimits returns the current request buffer limits.
func (s *Server) BufferLimits() buf.Limits {
	return *s.limits.Load()
}

// ResponseLimits returns the configured response limits.
func (s *Server) ResponseLimits() ResponseLimits {
	return s.cfg.Response
}

// NewSession creates the per-connection state for conn.
func (s *Server) NewSession(conn Conn) *Session {
	return newSession(s, conn)
}
