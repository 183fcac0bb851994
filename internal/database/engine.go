// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package database

import "context"

// Engine runs the native backup, verify and restore statements.
// Paths are files on the database host.
type Engine interface {
	BackupDatabase(ctx context.Context, path string) error
	VerifyBackup(ctx context.Context, path string) error
	RestoreDatabase(ctx context.Context, path string) error
}

// ReferenceQuerier reports which of the given paths are stored in table.column.
// paths may be of any length.
type ReferenceQuerier interface {
	ReferencedPaths(ctx context.Context, table, column string, paths []string) ([]string, error)
}
