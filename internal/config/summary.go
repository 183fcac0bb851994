// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package config

import (
	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/logging"
)

// LogSummary logs the effective configuration at info level. Credentials
// never appear: the DSN is redacted and passwords are reported as set or not.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (c *Config) LogSummary(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Server.Environment).
		Str("dsn", logging.RedactDSN(c.SQLServer().DSN(c.Database.Name))).
		Bool("encryption_password_set", c.Backup.EncryptionPassword != "").
		Str("backup_dir", c.Backup.Dir).
		Bool("backup_enabled", c.Backup.Enabled).
		Str("backup_cron", c.Backup.Cron).
		Int("max_backups", c.Backup.MaxBackups).
		Str("compression", c.Backup.Compression).
		Bool("require_mac", c.Backup.RequireMAC).
		Bool("cleanup_enabled", c.Cleanup.Enabled).
		Str("cleanup_cron", c.Cleanup.Cron).
		Str("uploads_dir", c.Cleanup.UploadsDir).
		Str("cleanup_sources", c.Cleanup.Sources).
		Str("listen", c.ListenAddr()).
		Str("reports_dir", c.Lifecycle.ReportsDir).
		Str("log_file", c.Logging.File).
		Msg("Configuration loaded")
}
