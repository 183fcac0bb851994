// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package scheduler fires jobs on cron schedules and runs each firing as an
isolated execution unit.

A job binds a cron expression to a Launcher. A launcher starts a unit from
the isolation package: the backup job spawns the dumpvault binary itself
(`dumpvault backup`) in its own process group, the cleanup job starts a
goroutine worker running the orphan collector.

# Overlap Policy

Each job has an atomic in-flight flag. A firing that finds the flag set is
dropped: it is logged, counted in dumpvault_job_skipped_total, and never
queued. At most one unit per job is alive at any time.

# Schedules

Expressions use five fields (minute hour day-of-month month day-of-week),
an optional leading seconds field, or a descriptor:

	0 3 * * *       every day at 03:00
	0/30 * * * * *  every 30 seconds
	@every 6h
	@daily

# Lifecycle

Add registers a "stop <job>" cleanup task with the lifecycle registry. The
task removes the cron entry, terminates the in-flight unit if there is one,
and waits for it to report its result.

Scheduler implements suture.Service so the supervision tree owns the cron
loop:

	sched := scheduler.New(registry)
	_ = sched.Add("backup", cfg.Backup.Cron, backupLauncher)
	tree.AddJobService(sched)

Trigger runs a job immediately through the same in-flight guard; the ops
HTTP endpoint uses it.
*/
package scheduler
