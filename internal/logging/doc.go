// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package logging provides centralized zerolog-based structured logging for Dumpvault.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once at startup
//   - JSON output for production, console output for development
//   - A size and line-count rotated file sink backed by lumberjack
//   - Correlation IDs so every line of one backup or collector run can be grouped
//   - An slog adapter for Suture v4 supervisor events
//   - Redaction helpers for connection strings and passwords
//
// # Quick Start
//
//	sink, err := logging.NewSink(logging.SinkConfig{Path: "/var/log/dumpvault/dumpvault.log", MaxLines: 100000})
//	if err != nil { ... }
//	defer sink.Close()
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    File:   sink,
//	})
//
//	logging.Info().Str("bundle", name).Msg("Backup completed")
//	logging.Ctx(ctx).Error().Err(err).Msg("Restore failed")
//
// # Configuration
//
// Environment Variables:
//
//	LOG_LEVEL         - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT        - json, console (default: json)
//	LOG_CALLER        - include caller file:line (default: false)
//	LOG_FILE          - path of the rotated log file (default: none)
//	LOG_MAX_SIZE_MB   - rotate when the file exceeds this size (default: 100)
//	LOG_MAX_BACKUPS   - rotated files to keep (default: 5)
//	LOG_MAX_AGE_DAYS  - days to keep rotated files (default: 30)
//	LOG_MAX_LINES     - rotate after this many lines, 0 disables (default: 0)
//	LOG_COMPRESS      - gzip rotated files (default: true)
//
// # Child Processes
//
// Backup runs spawned by the scheduler write JSON lines to their stdout. The
// parent re-emits each line through its own logger, so only the parent ever
// writes to the rotated file.
package logging
