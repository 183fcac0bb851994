// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/dumpvault/internal/isolation"
	"github.com/tomtom215/dumpvault/internal/lifecycle"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

// fakeUnit finishes when the test calls finish or the scheduler terminates it.
type fakeUnit struct {
	name       string
	done       chan isolation.Result
	once       sync.Once
	terminated atomic.Bool
}

func newFakeUnit(name string) *fakeUnit {
	return &fakeUnit{name: name, done: make(chan isolation.Result, 1)}
}

func (u *fakeUnit) Name() string                  { return u.name }
func (u *fakeUnit) Done() <-chan isolation.Result { return u.done }

func (u *fakeUnit) Terminate() {
	u.terminated.Store(true)
	u.finish(isolation.Failed(errors.New("terminated")))
}

func (u *fakeUnit) finish(r isolation.Result) {
	u.once.Do(func() {
		r.Unit = u.name
		u.done <- r
		close(u.done)
	})
}

// blockingLauncher hands every launched unit to the test and tracks how many
// are alive at once.
type blockingLauncher struct {
	units    chan *fakeUnit
	launches atomic.Int32
	alive    atomic.Int32
	maxAlive atomic.Int32
}

func newBlockingLauncher() *blockingLauncher {
	return &blockingLauncher{units: make(chan *fakeUnit, 16)}
}

func (b *blockingLauncher) launch(context.Context) (isolation.Unit, error) {
	b.launches.Add(1)
	n := b.alive.Add(1)
	for {
		m := b.maxAlive.Load()
		if n <= m || b.maxAlive.CompareAndSwap(m, n) {
			break
		}
	}

	u := newFakeUnit("fake")
	inner := u.done
	wrapped := make(chan isolation.Result, 1)
	go func() {
		r, ok := <-inner
		b.alive.Add(-1)
		if ok {
			wrapped <- r
		}
		close(wrapped)
	}()
	b.units <- u
	return &wrappedUnit{fakeUnit: u, done: wrapped}, nil
}

type wrappedUnit struct {
	*fakeUnit
	done chan isolation.Result
}

func (w *wrappedUnit) Done() <-chan isolation.Result { return w.done }

func newTestScheduler(t *testing.T) (*Scheduler, *lifecycle.Registry) {
	t.Helper()
	registry := lifecycle.NewRegistry()
	s := New(registry, WithLogger(logging.NewTestLogger(io.Discard)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Drain(ctx)
	})
	return s, registry
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func receiveUnit(t *testing.T, b *blockingLauncher) *fakeUnit {
	t.Helper()
	select {
	case u := <-b.units:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("launcher was not called")
		return nil
	}
}

func jobStatus(s *Scheduler, name string) JobStatus {
	for _, j := range s.Jobs() {
		if j.Name == name {
			return j
		}
	}
	return JobStatus{}
}

func TestTriggerDropsOverlappingFirings(t *testing.T) {
	s, _ := newTestScheduler(t)
	b := newBlockingLauncher()
	const job = "overlap-backup"
	if err := s.Add(job, "0 3 * * *", b.launch); err != nil {
		t.Fatal(err)
	}
	skippedBefore := testutil.ToFloat64(metrics.JobSkipped.WithLabelValues(job))

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		dropped  atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.Trigger(job); {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrInFlight):
				dropped.Add(1)
			default:
				t.Errorf("Trigger() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 || dropped.Load() != 19 {
		t.Fatalf("accepted %d, dropped %d; want 1 and 19", accepted.Load(), dropped.Load())
	}
	if got := testutil.ToFloat64(metrics.JobSkipped.WithLabelValues(job)) - skippedBefore; got != 19 {
		t.Errorf("skipped metric increased by %v, want 19", got)
	}

	u := receiveUnit(t, b)
	if !jobStatus(s, job).InFlight {
		t.Error("job should report in flight")
	}
	u.finish(isolation.Ok(3))

	waitFor(t, "job to finish", func() bool { return !jobStatus(s, job).InFlight })
	st := jobStatus(s, job)
	if st.Runs != 1 || st.Skipped != 19 {
		t.Errorf("status = %+v", st)
	}
	if st.LastResult == nil || !st.LastResult.Success || st.LastResult.Count != 3 {
		t.Errorf("LastResult = %+v", st.LastResult)
	}

	// The slot is free again.
	if err := s.Trigger(job); err != nil {
		t.Fatalf("Trigger() after finish = %v", err)
	}
	receiveUnit(t, b).finish(isolation.Ok(0))
	waitFor(t, "second run", func() bool { return jobStatus(s, job).Runs == 2 })

	if b.maxAlive.Load() != 1 {
		t.Errorf("max concurrent units = %d, want 1", b.maxAlive.Load())
	}
}

func TestAddValidation(t *testing.T) {
	s, registry := newTestScheduler(t)
	noop := WorkerLauncher("noop", func(context.Context) (int, error) { return 0, nil })

	if err := s.Add("backup", "0 3 * * *", noop); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("backup", "0 4 * * *", noop); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("duplicate Add() = %v, want ErrDuplicateJob", err)
	}
	if err := s.Add("cleanup", "not a cron", noop); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.Add("cleanup", "@daily", nil); err == nil {
		t.Error("expected error for nil launcher")
	}
	if err := s.Add("", "@daily", noop); err == nil {
		t.Error("expected error for empty name")
	}
	if err := s.Trigger("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger(missing) = %v, want ErrUnknownJob", err)
	}

	pending := registry.Pending()
	if len(pending) != 1 || pending[0] != "stop backup" {
		t.Errorf("registered cleanup = %v, want [stop backup]", pending)
	}
}

func TestDrainTerminatesInFlightUnit(t *testing.T) {
	s, registry := newTestScheduler(t)
	b := newBlockingLauncher()
	const job = "drain-backup"
	if err := s.Add(job, "@every 1h", b.launch); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(job); err != nil {
		t.Fatal(err)
	}
	u := receiveUnit(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if !u.terminated.Load() {
		t.Error("in-flight unit was not terminated")
	}
	st := jobStatus(s, job)
	if st.InFlight {
		t.Error("drain must wait for the unit to finish")
	}
	if st.LastResult == nil || st.LastResult.Success {
		t.Errorf("LastResult = %+v, want failure", st.LastResult)
	}
	if err := s.Trigger(job); !errors.Is(err, ErrJobStopped) {
		t.Errorf("Trigger() after drain = %v, want ErrJobStopped", err)
	}
	if err := s.Add("late", "@daily", b.launch); !errors.Is(err, lifecycle.ErrDrained) {
		t.Errorf("Add() after drain = %v, want ErrDrained", err)
	}
}

func TestLaunchFailureIsRecorded(t *testing.T) {
	s, _ := newTestScheduler(t)
	const job = "broken"
	launchErr := errors.New("exec format error")
	if err := s.Add(job, "@daily", func(context.Context) (isolation.Unit, error) {
		return nil, launchErr
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(job); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "failed run", func() bool { return jobStatus(s, job).Runs == 1 })

	st := jobStatus(s, job)
	if st.InFlight || st.LastResult == nil || st.LastResult.Success {
		t.Errorf("status = %+v", st)
	}
	if got := testutil.ToFloat64(metrics.JobRuns.WithLabelValues(job, "failure")); got != 1 {
		t.Errorf("failure runs metric = %v, want 1", got)
	}
}

func TestWorkerLauncherPassesRunContext(t *testing.T) {
	s, _ := newTestScheduler(t)
	const job = "collector"
	ids := make(chan string, 1)
	if err := s.Add(job, "@daily", WorkerLauncher(job, func(ctx context.Context) (int, error) {
		ids <- logging.CorrelationIDFromContext(ctx)
		return 42, nil
	})); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(job); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-ids:
		if id == "" {
			t.Error("worker context has no correlation id")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not run")
	}
	waitFor(t, "worker result", func() bool { return jobStatus(s, job).Runs == 1 })
	if r := jobStatus(s, job).LastResult; r == nil || r.Count != 42 {
		t.Errorf("LastResult = %+v", r)
	}
}

func TestCommandLauncherSetsRunID(t *testing.T) {
	s, _ := newTestScheduler(t)
	const job = "child"
	launch := CommandLauncher(isolation.Command{
		Name: job,
		Path: "/bin/sh",
		Args: []string{"-c", `test -n "$` + RunIDEnv + `"`},
	})
	if err := s.Add(job, "@daily", launch); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger(job); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "child exit", func() bool { return jobStatus(s, job).Runs == 1 })
	if r := jobStatus(s, job).LastResult; r == nil || !r.Success {
		t.Errorf("child did not see %s: %+v", RunIDEnv, r)
	}
}

func TestServeFiresOnSchedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	const job = "ticker"
	fired := make(chan struct{}, 8)
	if err := s.Add(job, "@every 1s", WorkerLauncher(job, func(context.Context) (int, error) {
		fired <- struct{}{}
		return 0, nil
	})); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}
	if next := jobStatus(s, job).Next; next.IsZero() {
		t.Error("running scheduler should report the next firing")
	}

	cancel()
	select {
	case err := <-served:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	if s.String() != "scheduler" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"0 4 * * 0", false},
		{"*/30 * * * * *", false},
		{"0/30 * * * * *", false},
		{"@daily", false},
		{"@every 6h", false},
		{"", true},
		{"61 * * * *", true},
		{"every day", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := ParseSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}
