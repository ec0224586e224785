// Package server hosts the task API and management listeners.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

const defaultShutdownTimeout = 30 * time.Second

// Config describes one listener.
type Config struct {
	// Name labels the listener in logs ("public", "management").
	Name            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TLSConfig       *tls.Config
}

// Server binds a router to a TCP port. Start blocks until the context is
// cancelled or serving fails; cancellation drains in-flight requests.
type Server struct {
	cfg    Config
	router router.Router
	logger logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	ready    chan struct{}
}

func NewServer(cfg Config, r router.Router, log logger.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{cfg: cfg, router: r, logger: log, ready: make(chan struct{})}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or "" before Start has bound the port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("%s server: listen on port %d: %w", s.cfg.Name, s.cfg.Port, err)
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		TLSConfig:    s.cfg.TLSConfig,
	}
	s.mu.Lock()
	s.srv = srv
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("server listening",
		"server", s.cfg.Name,
		"addr", ln.Addr().String(),
		"tls", s.cfg.TLSConfig != nil,
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", s.cfg.Name, err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains the server within the configured shutdown timeout.
// It is a no-op when the server never started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("draining server", "server", s.cfg.Name, "timeout", s.cfg.ShutdownTimeout.String())
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s server: shutdown: %w", s.cfg.Name, err)
	}
	s.logger.Info("server stopped", "server", s.cfg.Name)
	return nil
}
