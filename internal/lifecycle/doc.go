// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package lifecycle owns process shutdown.

A Registry collects named cleanup tasks (stop a cron entry, terminate a
child process) in registration order. The Manager drains it exactly once,
whichever way the process ends:

  - SIGINT or SIGTERM: drain, close owned resources, exit 0
  - SIGUSR2 (reload): drain, close, then re-deliver SIGUSR2 to itself with
    the default disposition so a process manager sees a plain signal exit
  - Fail or a recovered panic: write a diagnostic report, drain, close,
    exit 1

Owned resources registered with AddCloser (database pools, the log sink)
are closed after every cleanup task, in reverse order of registration.

Diagnostic reports are JSON files named report-<timestamp>-<pid>.json. They
carry the error, the failing stack, a full goroutine dump and the names of
the cleanup tasks that were still pending. Reports are skipped in the
development environment.
*/
package lifecycle
