// Package server runs the HTTP listener with graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// defaultShutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown when Config leaves it unset.
const defaultShutdownTimeout = 30 * time.Second

// Config holds the configuration for a Server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// Handler serves every request.
	Handler http.Handler

	// TLSConfig enables HTTPS when non-nil.
	TLSConfig *tls.Config

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is an HTTP server bound to a context lifetime.
type Server struct {
	config Config
	http   *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		config: cfg,
		http: &http.Server{
			Handler:           cfg.Handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		},
		ready: make(chan struct{}),
	}
}

// ListenAndServe starts the server and blocks until the context is cancelled.
// On cancellation it stops accepting connections and waits up to the
// shutdown timeout for in-flight requests to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	slog.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"tls_enabled", s.config.TLSConfig != nil,
	)

	shutdownErr := make(chan error, 1)

	// Monitor context for shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("shutdown timeout reached, forcing close")
			err = s.http.Close()
		}
		shutdownErr <- err
	}()

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownErr
	if err == nil {
		slog.Info("all requests completed")
	}
	return err
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
