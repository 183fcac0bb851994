// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package main is the dumpvault command.
//
// dumpvault takes encrypted, verified SQL Server backups for a messenger
// deployment, restores them, and removes uploaded files the database no
// longer references.
//
// # Commands
//
//	dumpvault serve                 run the scheduler and ops HTTP server
//	dumpvault backup                take one backup into a new bundle
//	dumpvault restore [bundle]      restore the named or newest bundle
//	dumpvault collect [--dry-run]   remove unreferenced uploads once
//	dumpvault list [--json]         list bundles, newest first
//	dumpvault version               print the build version
//
// # Configuration
//
// Settings come from built-in defaults, an optional YAML file (--config or
// CONFIG_PATH) and environment variables, in increasing priority. The
// only required setting is DATABASE_ENCRYPTION_PASSWORD. See
// internal/config for the full list.
//
// # Exit Codes
//
// 0 on success and on SIGINT/SIGTERM, 1 on any failure. A failure outside
// development mode also writes a diagnostic report to REPORTS_DIR.
//
// # Scheduled Runs
//
// Under "serve", every backup runs as a child "dumpvault backup" process
// in its own process group. The child inherits the environment plus
// DUMPVAULT_RUN_ID, which becomes its correlation ID, and logs JSON to
// stderr for the parent to relay. Cleanup runs on a worker goroutine
// inside the serve process.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
