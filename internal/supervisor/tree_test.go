// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// stubService blocks until canceled, optionally failing its first runs.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStarts(t *testing.T, s *stubService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.starts.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s started %d times, want at least %d", s.name, s.starts.Load(), want)
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	cfg := tree.Config()
	def := DefaultTreeConfig()
	if cfg.FailureThreshold != def.FailureThreshold || cfg.FailureDecay != def.FailureDecay {
		t.Errorf("failure defaults not applied: %+v", cfg)
	}
	if cfg.FailureBackoff != def.FailureBackoff {
		t.Errorf("FailureBackoff = %v, want %v", cfg.FailureBackoff, def.FailureBackoff)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("explicit ShutdownTimeout overwritten: %v", cfg.ShutdownTimeout)
	}
}

func TestNewSupervisorTreeRequiresLogger(t *testing.T) {
	if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestTreeStartsBothLayers(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	jobs := &stubService{name: "scheduler"}
	api := &stubService{name: "ops-server"}
	tree.AddJobService(jobs)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, jobs, 1)
	waitForStarts(t, api, 1)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("expected no unstopped services, got %v", report)
	}
	tree.LogUnstopped()
}

func TestFailingAPIServiceDoesNotRestartScheduler(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &stubService{name: "ops-server", failures: 2}
	stable := &stubService{name: "scheduler"}
	tree.AddAPIService(flaky)
	tree.AddJobService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, flaky, 3)
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("scheduler started %d times, want 1", got)
	}

	cancel()
	<-errCh
}

func TestRemoveAPIService(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

	svc := &stubService{name: "ops-server"}
	token := tree.AddAPIService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, svc, 1)
	if err := tree.RemoveAPIService(token); err != nil {
		t.Errorf("RemoveAPIService() error = %v", err)
	}

	cancel()
	<-errCh
}
