// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/dumpvault/internal/isolation"
	"github.com/tomtom215/dumpvault/internal/logging"
)

// RunIDEnv carries the scheduler's run ID into spawned children so their
// log lines can be correlated with the firing that started them.
const RunIDEnv = "DUMPVAULT_RUN_ID"

// ProcessLauncher spawns the running binary with args, for example
// ProcessLauncher("backup", []string{"backup"}, 0). The child inherits the
// parent's environment, and with it the configuration.
func ProcessLauncher(name string, args []string, grace time.Duration) (Launcher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve own executable: %w", err)
	}
	return CommandLauncher(isolation.Command{
		Name:        name,
		Path:        exe,
		Args:        args,
		GracePeriod: grace,
	}), nil
}

// CommandLauncher spawns cmd for every firing.
func CommandLauncher(cmd isolation.Command) Launcher {
	return func(ctx context.Context) (isolation.Unit, error) {
		c := cmd
		env := c.Env
		if env == nil {
			env = os.Environ()
		}
		c.Env = append(append([]string(nil), env...), RunIDEnv+"="+logging.CorrelationIDFromContext(ctx))
		return isolation.Spawn(ctx, c, logging.LoggerFromContext(ctx))
	}
}

// WorkerLauncher runs task on a goroutine worker for every firing.
func WorkerLauncher(name string, task isolation.Task) Launcher {
	return func(ctx context.Context) (isolation.Unit, error) {
		return isolation.StartWorker(ctx, name, task), nil
	}
}
