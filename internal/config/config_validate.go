// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package config

import (
	"fmt"
	"path/filepath"

	"github.com/tomtom215/dumpvault/internal/collector"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/scheduler"
	"github.com/tomtom215/dumpvault/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Struct tags cover ranges and enumerations; the checks below cover what
// tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	if err := c.validateCleanup(); err != nil {
		return err
	}

	return c.validateLifecycle()
}

func (c *Config) validateBackup() error {
	if !filepath.IsAbs(c.Backup.Dir) {
		return fmt.Errorf("BACKUP_DIR must be an absolute path, got %q", c.Backup.Dir)
	}
	if n := c.Backup.ScryptN; n&(n-1) != 0 {
		return fmt.Errorf("BACKUP_SCRYPT_N must be a power of two, got %d", n)
	}
	if c.Backup.Enabled {
		if _, err := scheduler.ParseSpec(c.Backup.Cron); err != nil {
			return fmt.Errorf("BACKUP_CRON is invalid: %w", err)
		}
	}
	return c.validateEncryptionPassword()
}

// validateEncryptionPassword enforces the passphrase policy outside
// development. In development a weak passphrase only logs a warning.
func (c *Config) validateEncryptionPassword() error {
	result := DefaultPassphrasePolicy().Check(c.Backup.EncryptionPassword, c.Database.Password)
	if result.Valid {
		if result.Strength < PassphraseStrengthGood {
			logging.Warn().
				Str("strength", result.Strength.String()).
				Msg("DATABASE_ENCRYPTION_PASSWORD is weak; consider a longer passphrase")
		}
		return nil
	}

	if c.IsDevelopment() {
		logging.Warn().
			Strs("problems", result.Errors).
			Msg("DATABASE_ENCRYPTION_PASSWORD does not meet the passphrase policy (allowed in development)")
		return nil
	}
	return fmt.Errorf("DATABASE_ENCRYPTION_PASSWORD is too weak: %w", result.Err())
}

func (c *Config) validateCleanup() error {
	if !filepath.IsAbs(c.Cleanup.UploadsDir) {
		return fmt.Errorf("UPLOADS_DIR must be an absolute path, got %q", c.Cleanup.UploadsDir)
	}

	sources, err := collector.ParseSources(c.Cleanup.Sources)
	if err != nil {
		return fmt.Errorf("CLEANUP_SOURCES is invalid: %w", err)
	}
	if !c.Cleanup.Enabled {
		return nil
	}
	if len(sources) == 0 {
		return fmt.Errorf("CLEANUP_SOURCES must list at least one dir:table.column when CLEANUP_ENABLED=true")
	}
	if _, err := scheduler.ParseSpec(c.Cleanup.Cron); err != nil {
		return fmt.Errorf("CLEANUP_CRON is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	if c.Lifecycle.ReportsDir != "" && !filepath.IsAbs(c.Lifecycle.ReportsDir) {
		return fmt.Errorf("REPORTS_DIR must be an absolute path, got %q", c.Lifecycle.ReportsDir)
	}
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		return fmt.Errorf("LOG_FILE must be an absolute path, got %q", c.Logging.File)
	}
	return nil
}
