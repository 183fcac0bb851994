// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package database adapts the messenger's SQL Server instance to the narrow
// interfaces the backup, restore and collector components need.
//
// # Overview
//
// Two interfaces cover everything the rest of the module asks of the engine:
//
//   - Engine: native BACKUP DATABASE, RESTORE VERIFYONLY and RESTORE DATABASE
//     statements against files on the database host.
//   - ReferenceQuerier: batched "which of these paths are still referenced"
//     lookups used by the orphan file collector.
//
// SQLServer implements both on top of database/sql and the
// github.com/denisenkom/go-mssqldb driver.
//
// # Statements
//
//	BACKUP DATABASE @p1 TO DISK = @p2 WITH COPY_ONLY, FORMAT, INIT, CHECKSUM
//	RESTORE VERIFYONLY FROM DISK = @p1 WITH CHECKSUM
//	RESTORE DATABASE @p1 FROM DISK = @p2 WITH REPLACE, RECOVERY
//	SELECT DISTINCT [column] FROM [table] WHERE [column] IN (@p1, ..., @pN)
//
// Backup and verify do not need exclusive access and run while the
// messenger is serving traffic. Restore does: the caller stops the messenger
// first, and the restore connection is opened against master so that it does
// not itself hold a session on the target database.
//
// The backup file paths are interpreted by the database server, so the
// retention root must be visible to it at the same path (same host or a
// shared volume).
//
// # Connection Handling
//
// Handles are short-lived: each pipeline run opens its own SQLServer and
// closes it when done. Open retries the initial ping with exponential backoff
// so that a database container that is still starting does not fail a
// scheduled run.
package database
