// Package httpserve runs an http.Server for the lifetime of a context.
package httpserve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/offlinekit/internal/logger"
)

// DefaultShutdownGrace bounds the wait for in-flight requests once the
// serving context ends.
const DefaultShutdownGrace = 5 * time.Second

// Server is a named http.Server that binds lazily and stops once.
type Server struct {
	name  string
	srv   *http.Server
	grace time.Duration

	mu sync.Mutex
	ln net.Listener

	stopOnce sync.Once
	stopErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithTimeouts sets the read, write and idle timeouts. Zero leaves a timeout
// unset.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.srv.ReadTimeout = read
		s.srv.WriteTimeout = write
		s.srv.IdleTimeout = idle
	}
}

// WithShutdownGrace replaces DefaultShutdownGrace.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.grace = d
		}
	}
}

// New returns a stopped server for h on addr. name prefixes log lines and
// errors.
func New(name, addr string, h http.Handler, opts ...Option) *Server {
	s := &Server{
		name:  name,
		grace: DefaultShutdownGrace,
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the listening socket. It is a no-op once bound.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
	s.ln = ln
	return nil
}

// Serve binds if needed and serves until ctx ends, then shuts down within
// the grace period. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	served := make(chan error, 1)
	go func() {
		logger.Info(s.name+" server listening", "address", ln.Addr().String())
		served <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		// ctx is already done; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
}

// Stop shuts the server down gracefully. Later calls return the first
// result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("%s server shutdown: %w", s.name, err)
			logger.Error(s.name+" server shutdown error", logger.Err(err))
			return
		}
		logger.Info(s.name + " server stopped")
	})

	// Shutdown only closes listeners that reached Serve.
	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()
	return s.stopErr
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Port returns the bound TCP port, or the configured one before Listen. It
// is 0 when the address carries no numeric port.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// HTTPServer exposes the underlying server for inspection.
func (s *Server) HTTPServer() *http.Server {
	return s.srv
}
