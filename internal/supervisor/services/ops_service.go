// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/dumpvault/internal/logging"
)

// Server matches the *http.Server methods the service drives.
type Server interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// OpsServerService runs the operations HTTP server under suture.
//
// The listener is opened on every Serve call, so a restart after a bind
// failure retries the bind instead of reusing a dead socket. Addr reports
// the bound address, which matters when the configured port is 0.
//
//	server := &http.Server{Handler: ops.NewRouter(deps), ReadHeaderTimeout: 5 * time.Second}
//	tree.AddAPIService(services.NewOpsServerService(server, "127.0.0.1:9464", 10*time.Second))
type OpsServerService struct {
	server          Server
	addr            string
	shutdownTimeout time.Duration
	listen          func(network, addr string) (net.Listener, error)

	mu    sync.Mutex
	bound net.Addr
	ready chan struct{}
}

// NewOpsServerService wraps server. shutdownTimeout bounds graceful
// connection draining and defaults to 10 seconds.
func NewOpsServerService(server Server, addr string, shutdownTimeout time.Duration) *OpsServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &OpsServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		listen:          net.Listen,
		ready:           make(chan struct{}),
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a graceful
// shutdown and a wrapped error when binding or serving fails.
func (s *OpsServerService) Serve(ctx context.Context) error {
	l, err := s.listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.markBound(l.Addr())

	logging.Info().
		Str("component", "ops-server").
		Str("addr", l.Addr().String()).
		Msg("Ops server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled; draining needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *OpsServerService) markBound(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.bound == nil
	s.bound = addr
	if first {
		close(s.ready)
	}
}

// Ready is closed once the listener has been bound for the first time.
func (s *OpsServerService) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before the first successful bind.
func (s *OpsServerService) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// String implements fmt.Stringer for suture event logs.
func (s *OpsServerService) String() string {
	return "ops-server"
}
