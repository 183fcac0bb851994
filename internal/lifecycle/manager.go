// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package lifecycle

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/tomtom215/dumpvault/internal/logging"
)

const (
	// EnvironmentDevelopment disables diagnostic reports.
	EnvironmentDevelopment = "development"

	defaultShutdownTimeout = 30 * time.Second
	defaultReloadWait      = 2 * time.Second
)

// ReloadSignal is the signal a process manager sends to request a restart.
var ReloadSignal = syscall.SIGUSR2

// Config configures a Manager.
type Config struct {
	Environment     string
	ReportsDir      string
	AppVersion      string
	ShutdownTimeout time.Duration
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Manager coordinates signal handling, failure reporting and shutdown.
type Manager struct {
	cfg      Config
	registry *Registry
	logger   zerolog.Logger

	mu      sync.Mutex
	closers []namedCloser

	// started makes shutdown run once even when a cleanup task itself fails.
	started atomic.Bool
	done    chan struct{}

	exit       func(code int)
	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stopNotify func(c chan<- os.Signal)
	reset      func(sig ...os.Signal)
	kill       func(pid int, sig unix.Signal) error
	now        func() time.Time
	reloadWait time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(m *Manager) { m.exit = exit }
}

// WithSignalSource replaces signal.Notify and signal.Stop.
func WithSignalSource(notify func(c chan<- os.Signal, sig ...os.Signal), stop func(c chan<- os.Signal)) Option {
	return func(m *Manager) {
		m.notify = notify
		m.stopNotify = stop
	}
}

// WithKill replaces the function used to re-deliver the reload signal.
func WithKill(kill func(pid int, sig unix.Signal) error) Option {
	return func(m *Manager) { m.kill = kill }
}

// NewManager creates a Manager draining registry on shutdown.
func NewManager(cfg Config, registry *Registry, opts ...Option) *Manager {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	m := &Manager{
		cfg:        cfg,
		registry:   registry,
		logger:     logging.WithComponent("lifecycle"),
		done:       make(chan struct{}),
		exit:       os.Exit,
		notify:     signal.Notify,
		stopNotify: signal.Stop,
		reset:      signal.Reset,
		kill:       unix.Kill,
		now:        time.Now,
		reloadWait: defaultReloadWait,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the cleanup registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Done is closed once shutdown has finished, just before exit is called.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// AddCloser registers an owned resource. Closers run after every cleanup
// task, last registered first.
func (m *Manager) AddCloser(name string, c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, namedCloser{name: name, closer: c})
}

// Watch handles SIGINT, SIGTERM and the reload signal until ctx is done.
func (m *Manager) Watch(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	m.notify(sigCh, syscall.SIGINT, syscall.SIGTERM, ReloadSignal)

	go func() {
		defer m.stopNotify(sigCh)
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			m.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			if sig == ReloadSignal {
				m.reload()
				return
			}
			m.Shutdown(sig.String(), 0)
		}
	}()
}

// Stopping reports whether shutdown has begun.
func (m *Manager) Stopping() bool {
	return m.started.Load()
}

// Shutdown drains cleanup tasks, closes owned resources and exits with code.
// Only the first call does anything; later calls return immediately.
func (m *Manager) Shutdown(reason string, code int) {
	if !m.started.CompareAndSwap(false, true) {
		m.logger.Debug().Str("reason", reason).Msg("Shutdown already in progress")
		return
	}
	m.cleanup(reason)
	close(m.done)
	m.logger.Info().Str("reason", reason).Int("exit_code", code).Msg("Shutdown complete")
	m.exit(code)
}

// Fail logs err, writes a diagnostic report and shuts down with exit code 1.
func (m *Manager) Fail(err error) {
	m.fail("error", err, debug.Stack())
}

// Recover converts a panic into Fail. Use it as the first deferred call in
// main and in every long-lived goroutine:
//
//	defer manager.Recover()
func (m *Manager) Recover() {
	if r := recover(); r != nil {
		m.fail("panic", fmt.Errorf("panic: %v", r), debug.Stack())
	}
}

func (m *Manager) fail(trigger string, err error, stack []byte) {
	m.logger.Error().Err(err).Str("trigger", trigger).Msg("Fatal failure, shutting down")

	if m.cfg.Environment != EnvironmentDevelopment && m.cfg.ReportsDir != "" {
		report := newReport(m.now(), trigger, err, stack)
		report.AppVersion = m.cfg.AppVersion
		report.Environment = m.cfg.Environment
		report.PendingCleanup = m.registry.Pending()

		if path, werr := WriteReport(m.cfg.ReportsDir, report); werr != nil {
			m.logger.Error().Err(werr).Msg("Failed to write diagnostic report")
		} else {
			m.logger.Info().Str("path", path).Msg("Diagnostic report written")
		}
	}

	m.Shutdown(trigger, 1)
}

// reload cleans up and then dies by the reload signal itself.
func (m *Manager) reload() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.cleanup("reload")
	close(m.done)

	m.reset(ReloadSignal)
	if err := m.kill(os.Getpid(), ReloadSignal); err != nil {
		m.logger.Error().Err(err).Msg("Failed to re-deliver reload signal")
		m.exit(1)
		return
	}
	// The default disposition terminates the process; exit only if
	// delivery is somehow delayed.
	time.Sleep(m.reloadWait)
	m.exit(0)
}

func (m *Manager) cleanup(reason string) {
	m.logger.Info().Str("reason", reason).Strs("pending", m.registry.Pending()).Msg("Running cleanup tasks")

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownTimeout)
	defer cancel()
	if err := m.registry.Drain(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Some cleanup tasks failed")
	}

	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.closer.Close(); err != nil {
			m.logger.Warn().Err(err).Str("resource", c.name).Msg("Failed to close resource")
		}
	}
}
