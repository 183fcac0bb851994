// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package testinfra starts real SQL Server instances for integration tests
// using testcontainers-go.
//
// Everything in this package is behind the "integration" build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// # SQL Server Container
//
//	func TestBackup(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    mssql, err := testinfra.NewMSSQLContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, mssql.Container)
//
//	    engine, err := database.Open(ctx, mssql.Config("messenger"), database.MasterDatabase)
//	    // ...
//	}
//
// BACKUP and RESTORE statements run inside the container, so the paths
// they take are container paths (see BackupDir).
//
// Tests are skipped when Docker is unavailable. The first run pulls the
// SQL Server image, which is large.
package testinfra
