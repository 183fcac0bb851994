// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/dumpvault/internal/isolation"
	"github.com/tomtom215/dumpvault/internal/logging"
)

func waitResult(t *testing.T, unit isolation.Unit) isolation.Result {
	t.Helper()
	select {
	case r := <-unit.Done():
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("unit %s did not finish", unit.Name())
		return isolation.Result{}
	}
}

func TestCommandLauncherPassesRunID(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	launch := CommandLauncher(isolation.Command{
		Name: "check-env",
		Path: "/bin/sh",
		Args: []string{"-c", `test "$` + RunIDEnv + `" = "run-42"`},
	})

	ctx := logging.ContextWithCorrelationID(context.Background(), "run-42")
	unit, err := launch(ctx)
	if err != nil {
		t.Fatalf("launch() error = %v", err)
	}
	if r := waitResult(t, unit); !r.Success {
		t.Errorf("child did not see %s: %+v", RunIDEnv, r)
	}

	// A different run ID must fail the same check.
	ctx = logging.ContextWithCorrelationID(context.Background(), "run-43")
	unit, err = launch(ctx)
	if err != nil {
		t.Fatalf("launch() error = %v", err)
	}
	if r := waitResult(t, unit); r.Success {
		t.Error("expected check against the wrong run ID to fail")
	}
}

func TestCommandLauncherKeepsExplicitEnv(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	cmd := isolation.Command{
		Name: "explicit-env",
		Path: "/bin/sh",
		Args: []string{"-c", `test "$MARKER" = "yes" && test -n "$` + RunIDEnv + `"`},
		Env:  []string{"MARKER=yes"},
	}
	unit, err := CommandLauncher(cmd)(logging.ContextWithNewCorrelationID(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	if r := waitResult(t, unit); !r.Success {
		t.Errorf("result = %+v", r)
	}
	if len(cmd.Env) != 1 {
		t.Errorf("launcher mutated the command's Env: %v", cmd.Env)
	}
}

func TestWorkerLauncher(t *testing.T) {
	launch := WorkerLauncher(cleanupName, func(context.Context) (int, error) { return 3, nil })

	unit, err := launch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if unit.Name() != cleanupName {
		t.Errorf("Name() = %q", unit.Name())
	}
	r := waitResult(t, unit)
	if !r.Success || r.Count != 3 {
		t.Errorf("result = %+v", r)
	}
}

func TestProcessLauncherResolvesExecutable(t *testing.T) {
	if _, err := ProcessLauncher("backup", []string{"backup"}, time.Second); err != nil {
		t.Fatalf("ProcessLauncher() error = %v", err)
	}
}

const cleanupName = "cleanup"
