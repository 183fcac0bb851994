// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package config loads and validates dumpvault's configuration.

# Configuration Sources

Koanf v2 layers three sources, later ones winning:
  - Built-in defaults (defaultConfig)
  - An optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/dumpvault/config.yaml
  - Environment variables, through an explicit mapping table

Environment variables that are not in the table are ignored, so unrelated
variables in a container never leak into the configuration.

# Environment Variables

Database:
  - DATABASE_HOST, DATABASE_PORT (default: localhost, 1433)
  - DATABASE_USER, DATABASE_PASSWORD (default user: sa)
  - DATABASE_NAME: database to back up and restore (default: messenger)
  - DATABASE_ENCRYPT, DATABASE_TRUST_SERVER_CERTIFICATE (default: disable, true)
  - DATABASE_STATEMENT_TIMEOUT: limit per BACKUP/RESTORE statement (default: 2h)

Backup:
  - DATABASE_ENCRYPTION_PASSWORD: passphrase for every bundle (required)
  - DATABASE_MAX_BACKUPS: bundles kept after each run (default: 7)
  - BACKUP_DIR: retention root (default: /data/dumps)
  - BACKUP_CRON, BACKUP_ENABLED (default: "0 3 * * *", true)
  - BACKUP_COMPRESSION: gzip or zstd (default: gzip)
  - BACKUP_SCRYPT_N: scrypt cost for new bundles (default: 16384)
  - BACKUP_REQUIRE_MAC: refuse to restore bundles without a MAC (default: false)

Cleanup:
  - CLEANUP_CRON, CLEANUP_ENABLED (default: "0 4 * * 0", true)
  - UPLOADS_DIR: uploads root (default: /data/uploads)
  - CLEANUP_SOURCES: dir:table.column[=prefix] list
  - CLEANUP_BATCH_SIZE, CLEANUP_CONCURRENCY, CLEANUP_BATCHES_PER_SECOND

Server and lifecycle:
  - HTTP_HOST, HTTP_PORT: ops endpoint (default: 127.0.0.1:9464)
  - ENVIRONMENT: development, staging or production (default: production)
  - REPORTS_DIR, SHUTDOWN_TIMEOUT, TERMINATE_GRACE_PERIOD

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - LOG_FILE plus LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS,
    LOG_MAX_LINES, LOG_COMPRESS for the rotating file sink

# Validation

Struct tags (go-playground/validator via the validation package) check
ranges and enumerations and report errors by env var name. Validate then
checks cron expressions with the scheduler's parser, parses
CLEANUP_SOURCES, and applies the passphrase policy to
DATABASE_ENCRYPTION_PASSWORD (warning only in development).

# Example

	cfg, err := config.Load()
	if err != nil {
	    return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.LogSummary(logging.WithComponent("config"))
*/
package config
