// Package server implements the LoftFS TCP front end: an accept loop
// spawning one goroutine per connection, each connection carrying one
// authenticated session speaking the wire protocol.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/loftlabs/loftfs/internal/logger"
	"github.com/loftlabs/loftfs/pkg/auth"
	"github.com/loftlabs/loftfs/pkg/metrics"
	"github.com/loftlabs/loftfs/pkg/storage"
)

// Config contains the transport-level server settings.
type Config struct {
	// ListenAddr is the TCP address to accept connections on
	ListenAddr string

	// MaxConnections limits concurrent connections (0 = unlimited)
	MaxConnections int
}

// Server accepts connections and binds each one to at most one session.
type Server struct {
	config     Config
	mu         sync.Mutex
	listener   net.Listener
	auth       auth.Store
	layout     storage.Layout
	propagator *storage.MutationPropagator
	bus        *storage.NotificationBus
	metrics    metrics.ProtocolMetrics // nil disables collection
}

func New(config Config, authStore auth.Store, layout storage.Layout, propagator *storage.MutationPropagator, bus *storage.NotificationBus, pm metrics.ProtocolMetrics) *Server {
	return &Server{
		config:     config,
		auth:       authStore,
		layout:     layout,
		propagator: propagator,
		bus:        bus,
		metrics:    pm,
	}
}

// Addr returns the bound listen address, available once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve listens and handles connections until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Info("LoftFS server listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	// Connection-limit semaphore; nil means unlimited.
	var slots chan struct{}
	if s.config.MaxConnections > 0 {
		slots = make(chan struct{}, s.config.MaxConnections)
	}

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Debug("accept: %v", err)
				continue
			}
		}

		if slots != nil {
			select {
			case slots <- struct{}{}:
			default:
				logger.Warn("connection limit reached, rejecting %s", tcpConn.RemoteAddr())
				tcpConn.Close()
				continue
			}
		}

		c := &conn{server: s, conn: tcpConn}
		go func() {
			c.serve(ctx)
			if slots != nil {
				<-slots
			}
		}()
	}
}

// Stop closes the listener; in-flight connections finish on their own.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
