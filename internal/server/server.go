// Package server implements the framed-JSON TCP front end: an acceptor, one
// sequential worker per connection and the action router behind them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/pkg/logger"
)

// Server accepts TCP connections and hands each one to a worker.
type Server struct {
	addr         string
	drainTimeout time.Duration
	router       *Router
	log          *logger.Logger

	// MaxConns caps concurrent connections; connections past the cap are
	// closed on accept. Zero means unlimited. Set before Serve.
	MaxConns int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// New constructs a server for the given listen address.
func New(addr string, drainTimeout time.Duration, router *Router, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("server")
	}
	return &Server{
		addr:         addr,
		drainTimeout: drainTimeout,
		router:       router,
		log:          log,
		conns:        make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP socket without accepting yet. Serve must follow.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.WithField("addr", ln.Addr().String()).Info("listening")
	return nil
}

// Addr reports the bound address. Nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is cancelled, then drains: in-flight
// workers get drainTimeout to finish before their connections are forced
// closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	// Unblock Accept when the context ends.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				close(stop)
				return s.drain()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			close(stop)
			ln.Close()
			return fmt.Errorf("server: accept: %w", err)
		}
		if s.MaxConns > 0 && s.connCount() >= s.MaxConns {
			s.log.WithField("remote", conn.RemoteAddr().String()).
				Warn("connection limit reached, rejecting")
			conn.Close()
			continue
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			metrics.ConnOpened()
			defer metrics.ConnClosed()
			newWorker(conn, s.router, s.log).serve(ctx)
			conn.Close()
		}()
	}
}

// drain waits for the workers, forcing connections closed once the timeout
// passes.
func (s *Server) drain() error {
	s.log.WithField("timeout", s.drainTimeout.String()).Info("draining connections")
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("drain complete")
		return nil
	case <-time.After(s.drainTimeout):
	}

	s.mu.Lock()
	remaining := len(s.conns)
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.log.WithField("connections", remaining).Warn("drain timeout, forcing connections closed")
	s.wg.Wait()
	return nil
}

func (s *Server) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
