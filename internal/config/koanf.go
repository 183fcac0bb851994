// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dumpvault/config.yaml",
	"/etc/dumpvault/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultCleanupSources maps the messenger's upload directories to the
// columns that reference them.
const DefaultCleanupSources = "avatars:users.avatar,photos:messages.photo"

// defaultConfig returns a Config with every default applied. Defaults are
// loaded first and then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   1433,
			User:                   "sa",
			Name:                   "messenger",
			Encrypt:                "disable",
			TrustServerCertificate: true,
			AppName:                "dumpvault",
			ConnectTimeout:         30 * time.Second,
			ConnectRetries:         5,
			ConnectRetryDelay:      2 * time.Second,
			StatementTimeout:       2 * time.Hour,
		},
		Backup: BackupConfig{
			Enabled:     true,
			Dir:         "/data/dumps",
			Cron:        "0 3 * * *",
			MaxBackups:  7,
			Compression: "gzip",
			ScryptN:     16384,
		},
		Cleanup: CleanupConfig{
			Enabled:          true,
			Cron:             "0 4 * * 0",
			UploadsDir:       "/data/uploads",
			Sources:          DefaultCleanupSources,
			BatchSize:        1000,
			Concurrency:      8,
			BatchesPerSecond: 0, // unlimited
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        9464,
			Timeout:     30 * time.Second,
			Environment: "production",
		},
		Lifecycle: LifecycleConfig{
			ReportsDir:      "/data/reports",
			ShutdownTimeout: 30 * time.Second,
			TerminateGrace:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML file (if one exists)
//  3. Environment Variables: override any setting
//
// Precedence is ENV > File > Defaults. The result is validated.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// DATABASE_ENCRYPTION_PASSWORD -> backup.encryption_password
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Database
	"database_host":                     "database.host",
	"database_port":                     "database.port",
	"database_user":                     "database.user",
	"database_password":                 "database.password",
	"database_name":                     "database.name",
	"database_encrypt":                  "database.encrypt",
	"database_trust_server_certificate": "database.trust_server_certificate",
	"database_app_name":                 "database.app_name",
	"database_connect_timeout":          "database.connect_timeout",
	"database_connect_retries":          "database.connect_retries",
	"database_connect_retry_delay":      "database.connect_retry_delay",
	"database_statement_timeout":        "database.statement_timeout",

	// Backup (the DATABASE_ names predate the backup section)
	"database_encryption_password": "backup.encryption_password",
	"database_max_backups":         "backup.max_backups",
	"backup_dir":                   "backup.dir",
	"backup_cron":                  "backup.cron",
	"backup_enabled":               "backup.enabled",
	"backup_compression":           "backup.compression",
	"backup_scrypt_n":              "backup.scrypt_n",
	"backup_require_mac":           "backup.require_mac",

	// Cleanup
	"cleanup_cron":               "cleanup.cron",
	"cleanup_enabled":            "cleanup.enabled",
	"uploads_dir":                "cleanup.uploads_dir",
	"cleanup_sources":            "cleanup.sources",
	"cleanup_batch_size":         "cleanup.batch_size",
	"cleanup_concurrency":        "cleanup.concurrency",
	"cleanup_batches_per_second": "cleanup.batches_per_second",

	// Server
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Lifecycle
	"reports_dir":            "lifecycle.reports_dir",
	"shutdown_timeout":       "lifecycle.shutdown_timeout",
	"terminate_grace_period": "lifecycle.terminate_grace",

	// Logging
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"log_file":         "logging.file",
	"log_max_size_mb":  "logging.max_size_mb",
	"log_max_backups":  "logging.max_backups",
	"log_max_age_days": "logging.max_age_days",
	"log_max_lines":    "logging.max_lines",
	"log_compress":     "logging.compress",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" so koanf skips them and unrelated variables
// never pollute the configuration.
//
// Examples:
//   - BACKUP_DIR -> backup.dir
//   - HTTP_PORT -> server.port
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// EnvVars returns the supported environment variable names, upper-cased.
func EnvVars() []string {
	names := make([]string, 0, len(envMappings))
	for k := range envMappings {
		names = append(names, strings.ToUpper(k))
	}
	return names
}
