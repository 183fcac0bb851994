// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
sqlserver.go - SQL Server Engine Adapter

Connection Pool Configuration:
  - MaxOpenConns: 2 (one statement at a time per run, plus headroom for ping)
  - MaxIdleConns: 1
  - ConnMaxLifetime: 1 hour

Connection Recovery:
Open pings the server and retries with exponential backoff
(ConnectRetryDelay * 2^attempt) up to ConnectRetries times. Statement
failures are never retried: a failed BACKUP or RESTORE aborts the run.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	// Registers the "sqlserver" driver.
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

// MasterDatabase is the system database restore connections use.
const MasterDatabase = "master"

// DriverName is the database/sql driver registered by go-mssqldb.
const DriverName = "sqlserver"

// Config holds SQL Server connection parameters.
type Config struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	Name                   string // target database
	Encrypt                string // disable, false, true
	TrustServerCertificate bool
	AppName                string
	ConnectTimeout         time.Duration
	ConnectRetries         int
	ConnectRetryDelay      time.Duration
	StatementTimeout       time.Duration
}

// DSN builds a sqlserver:// connection URL for the given database.
func (c *Config) DSN(database string) string {
	query := url.Values{}
	query.Add("database", database)
	if c.Encrypt != "" {
		query.Add("encrypt", c.Encrypt)
	}
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.AppName != "" {
		query.Add("app name", c.AppName)
	}
	if c.ConnectTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// SQLServer implements Engine and ReferenceQuerier.
type SQLServer struct {
	db               *sql.DB
	name             string
	statementTimeout time.Duration
	logger           zerolog.Logger
}

// Open connects to database on the configured server. Use MasterDatabase for
// restore handles and cfg.Name for everything else.
func Open(ctx context.Context, cfg *Config, database string) (*SQLServer, error) {
	db, err := sql.Open(DriverName, cfg.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("failed to open sql server connection: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := pingWithRetry(ctx, db, cfg); err != nil {
		closeQuietly(db)
		return nil, err
	}

	s := NewSQLServer(db, cfg.Name, cfg.StatementTimeout)
	s.logger.Debug().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", database).
		Msg("Connected to SQL Server")
	return s, nil
}

// NewSQLServer wraps an existing handle. name is the database that backup
// and restore statements target.
func NewSQLServer(db *sql.DB, name string, statementTimeout time.Duration) *SQLServer {
	return &SQLServer{
		db:               db,
		name:             name,
		statementTimeout: statementTimeout,
		logger:           logging.WithComponent("database"),
	}
}

// Close releases the connection pool.
func (s *SQLServer) Close() error {
	return s.db.Close()
}

// Ping checks that the server is reachable.
func (s *SQLServer) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BackupDatabase writes a full, copy-only backup of the target database to path.
func (s *SQLServer) BackupDatabase(ctx context.Context, path string) error {
	return s.exec(ctx, "backup",
		"BACKUP DATABASE @p1 TO DISK = @p2 WITH COPY_ONLY, FORMAT, INIT, CHECKSUM",
		s.name, path)
}

// VerifyBackup checks the structure and page checksums of the backup at path.
func (s *SQLServer) VerifyBackup(ctx context.Context, path string) error {
	return s.exec(ctx, "verify",
		"RESTORE VERIFYONLY FROM DISK = @p1 WITH CHECKSUM",
		path)
}

// RestoreDatabase replaces the target database with the backup at path.
func (s *SQLServer) RestoreDatabase(ctx context.Context, path string) error {
	return s.exec(ctx, "restore",
		"RESTORE DATABASE @p1 FROM DISK = @p2 WITH REPLACE, RECOVERY",
		s.name, path)
}

// ReferencedPaths returns the subset of paths present in table.column.
// Batches larger than MaxParameters are split into several statements.
func (s *SQLServer) ReferencedPaths(ctx context.Context, table, column string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var referenced []string
	for start := 0; start < len(paths); start += MaxParameters {
		end := min(start+MaxParameters, len(paths))
		hits, err := s.referencedChunk(ctx, table, column, paths[start:end])
		if err != nil {
			return nil, err
		}
		referenced = append(referenced, hits...)
	}
	return referenced, nil
}

func (s *SQLServer) referencedChunk(ctx context.Context, table, column string, paths []string) ([]string, error) {
	query, err := buildReferenceQuery(table, column, len(paths))
	if err != nil {
		return nil, err
	}
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.DBStatementErrors.WithLabelValues("reference").Inc()
		return nil, fmt.Errorf("failed to query references in %s.%s: %w", table, column, err)
	}
	defer closeWithLog(rows, "rows")

	referenced := make([]string, 0, len(paths))
	for rows.Next() {
		var p sql.NullString
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		if p.Valid {
			referenced = append(referenced, p.String)
		}
	}
	if err := rows.Err(); err != nil {
		metrics.DBStatementErrors.WithLabelValues("reference").Inc()
		return nil, fmt.Errorf("failed to read references in %s.%s: %w", table, column, err)
	}

	metrics.DBStatementDuration.WithLabelValues("reference").Observe(time.Since(start).Seconds())
	return referenced, nil
}

func (s *SQLServer) exec(ctx context.Context, statement, query string, args ...any) error {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		metrics.DBStatementErrors.WithLabelValues(statement).Inc()
		return fmt.Errorf("%s statement failed: %w", statement, err)
	}

	elapsed := time.Since(start)
	metrics.DBStatementDuration.WithLabelValues(statement).Observe(elapsed.Seconds())
	s.logger.Debug().
		Str("statement", statement).
		Str("database", s.name).
		Dur("duration", elapsed).
		Msg("Statement completed")
	return nil
}

func (s *SQLServer) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statementTimeout > 0 {
		return context.WithTimeout(ctx, s.statementTimeout)
	}
	return context.WithCancel(ctx)
}

// pingWithRetry verifies the connection with exponential backoff.
func pingWithRetry(ctx context.Context, db *sql.DB, cfg *Config) error {
	attempts := cfg.ConnectRetries + 1
	delay := cfg.ConnectRetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := delay * time.Duration(1<<uint(attempt-1))
			logging.Warn().
				Err(lastErr).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("SQL Server not reachable, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to connect to sql server after %d attempts: %w", attempts, lastErr)
}
