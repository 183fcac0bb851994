// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/dumpvault/internal/backup"
	"github.com/tomtom215/dumpvault/internal/collector"
	"github.com/tomtom215/dumpvault/internal/cryptostream"
	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/lifecycle"
	"github.com/tomtom215/dumpvault/internal/logging"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (CONFIG_PATH, config.yaml, /etc/dumpvault/config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Backup    BackupConfig    `koanf:"backup"`
	Cleanup   CleanupConfig   `koanf:"cleanup"`
	Server    ServerConfig    `koanf:"server"`
	Lifecycle LifecycleConfig `koanf:"lifecycle"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig holds SQL Server connection settings.
type DatabaseConfig struct {
	Host                   string        `koanf:"host" env:"DATABASE_HOST" validate:"required"`
	Port                   int           `koanf:"port" env:"DATABASE_PORT" validate:"min=1,max=65535"`
	User                   string        `koanf:"user" env:"DATABASE_USER" validate:"required"`
	Password               string        `koanf:"password" env:"DATABASE_PASSWORD"`
	Name                   string        `koanf:"name" env:"DATABASE_NAME" validate:"required,sqlident"`
	Encrypt                string        `koanf:"encrypt" env:"DATABASE_ENCRYPT" validate:"oneof=disable false true strict"`
	TrustServerCertificate bool          `koanf:"trust_server_certificate" env:"DATABASE_TRUST_SERVER_CERTIFICATE"`
	AppName                string        `koanf:"app_name" env:"DATABASE_APP_NAME"`
	ConnectTimeout         time.Duration `koanf:"connect_timeout" env:"DATABASE_CONNECT_TIMEOUT" validate:"gte=0"`
	ConnectRetries         int           `koanf:"connect_retries" env:"DATABASE_CONNECT_RETRIES" validate:"min=0,max=20"`
	ConnectRetryDelay      time.Duration `koanf:"connect_retry_delay" env:"DATABASE_CONNECT_RETRY_DELAY" validate:"gte=0"`
	StatementTimeout       time.Duration `koanf:"statement_timeout" env:"DATABASE_STATEMENT_TIMEOUT" validate:"gte=0"`
}

// BackupConfig holds backup pipeline and retention settings.
type BackupConfig struct {
	Enabled            bool   `koanf:"enabled" env:"BACKUP_ENABLED"`
	Dir                string `koanf:"dir" env:"BACKUP_DIR" validate:"required"`
	Cron               string `koanf:"cron" env:"BACKUP_CRON"`
	MaxBackups         int    `koanf:"max_backups" env:"DATABASE_MAX_BACKUPS" validate:"min=1,max=1000"`
	EncryptionPassword string `koanf:"encryption_password" env:"DATABASE_ENCRYPTION_PASSWORD" validate:"required"`
	Compression        string `koanf:"compression" env:"BACKUP_COMPRESSION" validate:"oneof=gzip zstd"`
	ScryptN            int    `koanf:"scrypt_n" env:"BACKUP_SCRYPT_N" validate:"min=1024"`
	RequireMAC         bool   `koanf:"require_mac" env:"BACKUP_REQUIRE_MAC"`
}

// CleanupConfig holds orphan collector settings.
type CleanupConfig struct {
	Enabled          bool    `koanf:"enabled" env:"CLEANUP_ENABLED"`
	Cron             string  `koanf:"cron" env:"CLEANUP_CRON"`
	UploadsDir       string  `koanf:"uploads_dir" env:"UPLOADS_DIR" validate:"required"`
	Sources          string  `koanf:"sources" env:"CLEANUP_SOURCES"`
	BatchSize        int     `koanf:"batch_size" env:"CLEANUP_BATCH_SIZE" validate:"min=1"`
	Concurrency      int     `koanf:"concurrency" env:"CLEANUP_CONCURRENCY" validate:"min=1,max=256"`
	BatchesPerSecond float64 `koanf:"batches_per_second" env:"CLEANUP_BATCHES_PER_SECOND" validate:"gte=0"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host" env:"HTTP_HOST" validate:"required"`
	Port        int           `koanf:"port" env:"HTTP_PORT" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout" env:"HTTP_TIMEOUT" validate:"gte=0"`
	Environment string        `koanf:"environment" env:"ENVIRONMENT" validate:"oneof=development staging production"`
}

// LifecycleConfig holds shutdown and diagnostic report settings.
type LifecycleConfig struct {
	ReportsDir      string        `koanf:"reports_dir" env:"REPORTS_DIR"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
	TerminateGrace  time.Duration `koanf:"terminate_grace" env:"TERMINATE_GRACE_PERIOD" validate:"gte=0"`
}

// LoggingConfig holds logger and rotating file sink settings.
type LoggingConfig struct {
	Level      string `koanf:"level" env:"LOG_LEVEL" validate:"loglevel"`
	Format     string `koanf:"format" env:"LOG_FORMAT" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller" env:"LOG_CALLER"`
	File       string `koanf:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `koanf:"max_size_mb" env:"LOG_MAX_SIZE_MB" validate:"min=1"`
	MaxBackups int    `koanf:"max_backups" env:"LOG_MAX_BACKUPS" validate:"min=0"`
	MaxAgeDays int    `koanf:"max_age_days" env:"LOG_MAX_AGE_DAYS" validate:"min=0"`
	MaxLines   int    `koanf:"max_lines" env:"LOG_MAX_LINES" validate:"min=0"`
	Compress   bool   `koanf:"compress" env:"LOG_COMPRESS"`
}

// Load reads configuration using Koanf (defaults, file, environment) and
// validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsDevelopment reports whether the deployment runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == lifecycle.EnvironmentDevelopment
}

// SQLServer converts the database section for the engine adapter.
func (c *Config) SQLServer() *database.Config {
	appName := c.Database.AppName
	if appName == "" {
		appName = "dumpvault"
	}
	return &database.Config{
		Host:                   c.Database.Host,
		Port:                   c.Database.Port,
		User:                   c.Database.User,
		Password:               c.Database.Password,
		Name:                   c.Database.Name,
		Encrypt:                c.Database.Encrypt,
		TrustServerCertificate: c.Database.TrustServerCertificate,
		AppName:                appName,
		ConnectTimeout:         c.Database.ConnectTimeout,
		ConnectRetries:         c.Database.ConnectRetries,
		ConnectRetryDelay:      c.Database.ConnectRetryDelay,
		StatementTimeout:       c.Database.StatementTimeout,
	}
}

// KDFParams returns the scrypt cost for new bundles.
func (c *Config) KDFParams() cryptostream.KDFParams {
	p := cryptostream.DefaultKDFParams()
	p.N = c.Backup.ScryptN
	return p
}

// Codec returns the configured compression codec.
func (c *Config) Codec() (backup.Codec, error) {
	return backup.ParseCodec(c.Backup.Compression)
}

// Collector converts the cleanup section. Sources must already have passed
// validation.
func (c *Config) Collector(dryRun bool) (collector.Config, error) {
	sources, err := collector.ParseSources(c.Cleanup.Sources)
	if err != nil {
		return collector.Config{}, err
	}
	return collector.Config{
		Root:             c.Cleanup.UploadsDir,
		Sources:          sources,
		BatchSize:        c.Cleanup.BatchSize,
		Concurrency:      c.Cleanup.Concurrency,
		BatchesPerSecond: c.Cleanup.BatchesPerSecond,
		DryRun:           dryRun,
	}, nil
}

// Log returns the logger configuration. The file sink is attached
// separately once it has been opened.
func (c *Config) Log() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}

// Sink returns the rotating file sink configuration, or false when no log
// file is configured.
func (c *Config) Sink() (logging.SinkConfig, bool) {
	if c.Logging.File == "" {
		return logging.SinkConfig{}, false
	}
	return logging.SinkConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		MaxLines:   c.Logging.MaxLines,
		Compress:   c.Logging.Compress,
	}, true
}

// LifecycleManager returns the lifecycle manager configuration.
func (c *Config) LifecycleManager(appVersion string) lifecycle.Config {
	return lifecycle.Config{
		Environment:     c.Server.Environment,
		ReportsDir:      c.Lifecycle.ReportsDir,
		AppVersion:      appVersion,
		ShutdownTimeout: c.Lifecycle.ShutdownTimeout,
	}
}

// ListenAddr returns host:port for the ops server.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
