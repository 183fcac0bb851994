// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package supervisor runs the long-lived services of "dumpvault serve" under
suture v4.

# Overview

	RootSupervisor ("dumpvault")
	├── JobSupervisor ("job-layer")
	│   └── Scheduler (backup and cleanup cron entries)
	└── APISupervisor ("api-layer")
	    └── OpsServerService (health, metrics, bundle listing)

Backup and cleanup runs are not suture services. The scheduler launches
each run as an isolated child process or worker and the lifecycle manager
terminates in-flight runs during shutdown; a crashed run is recorded as a
failed result, never restarted.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Lifecycle.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddJobService(sched)
	tree.AddAPIService(services.NewOpsServerService(server, cfg.ListenAddr(), 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Once the counter passes FailureThreshold the supervisor waits
FailureBackoff before the next restart. Services return ctx.Err() on
shutdown; any other return value counts as a failure.

Events are logged through sutureslog, which bridges into the zerolog
global logger via logging.NewSlogLogger.
*/
package supervisor
