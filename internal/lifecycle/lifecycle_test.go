// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sys/unix"
)

// recorder captures the order of cleanup events and the exit code.
type recorder struct {
	mu     sync.Mutex
	events []string
	codes  chan int
}

func newRecorder() *recorder {
	return &recorder{codes: make(chan int, 4)}
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) exit(code int) { r.codes <- code }

func (r *recorder) waitExit(t *testing.T) int {
	t.Helper()
	select {
	case code := <-r.codes:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not called")
		return -1
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// fakeSignals hands the registered channel to the test.
type fakeSignals struct {
	ch      chan chan<- os.Signal
	stopped chan struct{}
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{ch: make(chan chan<- os.Signal, 1), stopped: make(chan struct{}, 1)}
}

func (f *fakeSignals) notify(c chan<- os.Signal, _ ...os.Signal) { f.ch <- c }
func (f *fakeSignals) stop(chan<- os.Signal)                     { f.stopped <- struct{}{} }

func TestRegistryDrainOrder(t *testing.T) {
	r := NewRegistry()
	rec := newRecorder()

	for _, name := range []string{"stop backup", "stop cleanup", "close pool"} {
		if err := r.Register(name, func(context.Context) error {
			rec.add(name)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	if got := r.Pending(); strings.Join(got, ",") != "stop backup,stop cleanup,close pool" {
		t.Errorf("Pending() = %v", got)
	}
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if got := rec.list(); strings.Join(got, ",") != "stop backup,stop cleanup,close pool" {
		t.Errorf("drain order = %v", got)
	}
	if len(r.Pending()) != 0 {
		t.Error("registry should be cleared after drain")
	}
}

func TestRegistryDrainContinuesAfterFailure(t *testing.T) {
	r := NewRegistry()
	rec := newRecorder()
	taskErr := errors.New("kill failed")

	_ = r.Register("first", func(context.Context) error { return taskErr })
	_ = r.Register("second", func(context.Context) error { panic("boom") })
	_ = r.Register("third", func(context.Context) error { rec.add("third"); return nil })

	err := r.Drain(context.Background())
	if !errors.Is(err, taskErr) {
		t.Errorf("Drain() error = %v, want it to include %v", err, taskErr)
	}
	if err == nil || !strings.Contains(err.Error(), "second: panic: boom") {
		t.Errorf("panic should be reported as an error: %v", err)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "third" {
		t.Errorf("later tasks must still run, got %v", got)
	}
}

func TestRegistryDrainOnce(t *testing.T) {
	r := NewRegistry()
	var calls int
	_ = r.Register("task", func(context.Context) error { calls++; return nil })

	_ = r.Drain(context.Background())
	_ = r.Drain(context.Background())

	if calls != 1 {
		t.Errorf("task ran %d times, want 1", calls)
	}
	if err := r.Register("late", func(context.Context) error { return nil }); !errors.Is(err, ErrDrained) {
		t.Errorf("Register after drain = %v, want ErrDrained", err)
	}
	if err := NewRegistry().Register("nil", nil); err == nil {
		t.Error("expected error for nil task")
	}
}

func TestManagerShutdownOrder(t *testing.T) {
	rec := newRecorder()
	registry := NewRegistry()
	m := NewManager(Config{Environment: "production"}, registry, WithExit(rec.exit))

	_ = registry.Register("stop backup", func(context.Context) error { rec.add("task:stop backup"); return nil })
	m.AddCloser("db", closerFunc(func() error { rec.add("close:db"); return nil }))
	m.AddCloser("log", closerFunc(func() error { rec.add("close:log"); return nil }))

	if m.Stopping() {
		t.Error("Stopping() = true before shutdown")
	}
	m.Shutdown("test", 0)
	m.Shutdown("again", 1)
	if !m.Stopping() {
		t.Error("Stopping() = false after shutdown")
	}

	if code := rec.waitExit(t); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	select {
	case code := <-rec.codes:
		t.Errorf("exit called twice (second code %d)", code)
	default:
	}

	want := "task:stop backup,close:log,close:db"
	if got := strings.Join(rec.list(), ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done() should be closed after shutdown")
	}
}

func TestManagerFailWritesReport(t *testing.T) {
	rec := newRecorder()
	dir := t.TempDir()
	registry := NewRegistry()
	m := NewManager(Config{Environment: "production", ReportsDir: dir, AppVersion: "1.2.3"}, registry, WithExit(rec.exit))
	_ = registry.Register("stop backup", func(context.Context) error { return nil })

	m.Fail(errors.New("scheduler crashed"))

	if code := rec.waitExit(t); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "report-*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one report, got %v (%v)", matches, err)
	}
	info, err := os.Stat(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("report mode = %v, want 0600", info.Mode().Perm())
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report.Error != "scheduler crashed" || report.Trigger != "error" {
		t.Errorf("report = %+v", report)
	}
	if report.PID != os.Getpid() || report.AppVersion != "1.2.3" || report.GoVersion == "" {
		t.Errorf("process fields missing: %+v", report)
	}
	if len(report.PendingCleanup) != 1 || report.PendingCleanup[0] != "stop backup" {
		t.Errorf("PendingCleanup = %v", report.PendingCleanup)
	}
	if !strings.Contains(report.Goroutines, "goroutine") {
		t.Error("goroutine dump missing")
	}
}

func TestManagerFailDevelopmentSkipsReport(t *testing.T) {
	rec := newRecorder()
	dir := filepath.Join(t.TempDir(), "reports")
	m := NewManager(Config{Environment: EnvironmentDevelopment, ReportsDir: dir}, NewRegistry(), WithExit(rec.exit))

	m.Fail(errors.New("boom"))
	rec.waitExit(t)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("no report may be written in development")
	}
}

func TestManagerRecover(t *testing.T) {
	rec := newRecorder()
	registry := NewRegistry()
	m := NewManager(Config{Environment: EnvironmentDevelopment}, registry, WithExit(rec.exit))
	_ = registry.Register("stop", func(context.Context) error { rec.add("stopped"); return nil })

	func() {
		defer m.Recover()
		panic("nil pointer")
	}()

	if code := rec.waitExit(t); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "stopped" {
		t.Errorf("cleanup should run on panic, got %v", got)
	}
}

func TestManagerFailInsideCleanupDoesNotDeadlock(t *testing.T) {
	rec := newRecorder()
	registry := NewRegistry()
	m := NewManager(Config{Environment: EnvironmentDevelopment}, registry, WithExit(rec.exit))
	_ = registry.Register("fails", func(context.Context) error {
		m.Fail(errors.New("nested"))
		return nil
	})

	done := make(chan struct{})
	go func() {
		m.Shutdown("test", 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown deadlocked")
	}
	if code := rec.waitExit(t); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestManagerWatchSignal(t *testing.T) {
	rec := newRecorder()
	signals := newFakeSignals()
	registry := NewRegistry()
	m := NewManager(Config{}, registry, WithExit(rec.exit), WithSignalSource(signals.notify, signals.stop))
	_ = registry.Register("stop", func(context.Context) error { rec.add("stopped"); return nil })

	m.Watch(context.Background())
	ch := <-signals.ch
	ch <- syscall.SIGTERM

	if code := rec.waitExit(t); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := rec.list(); len(got) != 1 {
		t.Errorf("cleanup events = %v", got)
	}
}

func TestManagerWatchReload(t *testing.T) {
	rec := newRecorder()
	signals := newFakeSignals()

	var (
		mu     sync.Mutex
		killed []unix.Signal
		pids   []int
	)
	m := NewManager(Config{}, NewRegistry(),
		WithExit(rec.exit),
		WithSignalSource(signals.notify, signals.stop),
		WithKill(func(pid int, sig unix.Signal) error {
			mu.Lock()
			defer mu.Unlock()
			pids = append(pids, pid)
			killed = append(killed, sig)
			return nil
		}),
	)
	m.reloadWait = 10 * time.Millisecond

	var resetCalled bool
	m.reset = func(sig ...os.Signal) {
		resetCalled = len(sig) == 1 && sig[0] == ReloadSignal
	}

	m.Watch(context.Background())
	ch := <-signals.ch
	ch <- ReloadSignal

	rec.waitExit(t)

	mu.Lock()
	defer mu.Unlock()
	if !resetCalled {
		t.Error("reload signal disposition should be reset before re-delivery")
	}
	if len(killed) != 1 || killed[0] != ReloadSignal || pids[0] != os.Getpid() {
		t.Errorf("kill calls = %v to %v, want one %v to self", killed, pids, ReloadSignal)
	}
}

func TestManagerWatchStopsWithContext(t *testing.T) {
	signals := newFakeSignals()
	m := NewManager(Config{}, NewRegistry(), WithSignalSource(signals.notify, signals.stop))

	ctx, cancel := context.WithCancel(context.Background())
	m.Watch(ctx)
	<-signals.ch
	cancel()

	select {
	case <-signals.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("signal delivery not stopped after context cancellation")
	}
}
