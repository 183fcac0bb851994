// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/dumpvault/internal/database"
)

const (
	// DefaultMSSQLImage is the SQL Server image the integration tests run.
	DefaultMSSQLImage = "mcr.microsoft.com/mssql/server:2022-latest"

	// DefaultMSSQLPort is the TDS port inside the container.
	DefaultMSSQLPort = "1433"

	// DefaultSAPassword satisfies the SQL Server password complexity policy.
	DefaultSAPassword = "Dumpvault-Test-1!"

	// BackupDir is a container directory the mssql user can write to.
	BackupDir = "/var/opt/mssql/data"
)

// MSSQLContainer is a running SQL Server instance.
type MSSQLContainer struct {
	testcontainers.Container
	Host       string
	Port       int
	SAPassword string
}

// MSSQLOption configures the SQL Server container.
type MSSQLOption func(*mssqlConfig)

type mssqlConfig struct {
	image        string
	saPassword   string
	startTimeout time.Duration
}

// WithMSSQLImage sets a custom SQL Server image.
func WithMSSQLImage(image string) MSSQLOption {
	return func(c *mssqlConfig) {
		c.image = image
	}
}

// WithSAPassword sets the sa password.
func WithSAPassword(password string) MSSQLOption {
	return func(c *mssqlConfig) {
		c.saPassword = password
	}
}

// WithMSSQLStartTimeout sets how long to wait for the server to accept logins.
func WithMSSQLStartTimeout(timeout time.Duration) MSSQLOption {
	return func(c *mssqlConfig) {
		c.startTimeout = timeout
	}
}

// NewMSSQLContainer creates and starts a SQL Server container.
func NewMSSQLContainer(ctx context.Context, opts ...MSSQLOption) (*MSSQLContainer, error) {
	cfg := &mssqlConfig{
		image:        DefaultMSSQLImage,
		saPassword:   DefaultSAPassword,
		startTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMSSQLPort + "/tcp"},
		Env: map[string]string{
			"ACCEPT_EULA":       "Y",
			"MSSQL_SA_PASSWORD": cfg.saPassword,
			"MSSQL_PID":         "Developer",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMSSQLPort+"/tcp"),
			wait.ForLog("SQL Server is now ready for client connections"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create sql server container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMSSQLPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("parse mapped port %q: %w", port.Port(), err)
	}

	return &MSSQLContainer{
		Container:  container,
		Host:       host,
		Port:       portNum,
		SAPassword: cfg.saPassword,
	}, nil
}

// Config returns connection settings targeting name as the backup database.
func (c *MSSQLContainer) Config(name string) *database.Config {
	return &database.Config{
		Host:                   c.Host,
		Port:                   c.Port,
		User:                   "sa",
		Password:               c.SAPassword,
		Name:                   name,
		Encrypt:                "disable",
		TrustServerCertificate: true,
		AppName:                "dumpvault-integration",
		ConnectTimeout:         15 * time.Second,
		ConnectRetries:         5,
		ConnectRetryDelay:      time.Second,
		StatementTimeout:       5 * time.Minute,
	}
}
