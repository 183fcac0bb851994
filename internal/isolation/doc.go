// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package isolation runs scheduled work in execution units that report exactly
one Result.

Two kinds of Unit exist:

  - Worker: a goroutine with its own cancellable context and panic
    recovery. Used for the orphan collector.
  - Process: a child process in its own process group whose stdout and
    stderr are relayed line by line into the parent's logger. Used for
    backups, so a crash in the backup path cannot take the scheduler down.

Both deliver a single Result on Done() and then close the channel.
Terminate is idempotent: it cancels a worker's context, or sends SIGTERM to
a child's process group followed by SIGKILL once the grace period expires.
*/
package isolation
