// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package backup

import (
	"errors"
	"fmt"

	"github.com/tomtom215/dumpvault/internal/dumpstore"
)

// ErrUnknownCodec is returned when an artifact starts with neither the gzip
// nor the zstd magic bytes.
var ErrUnknownCodec = errors.New("unknown compression format")

// BackupVerificationError reports that the engine rejected a fresh backup file.
type BackupVerificationError struct {
	Path string
	Err  error
}

func (e *BackupVerificationError) Error() string {
	return fmt.Sprintf("backup verification failed for %s: %v", e.Path, e.Err)
}

func (e *BackupVerificationError) Unwrap() error {
	return e.Err
}

// RestoreVerificationError reports that the decrypted staging file did not
// verify, so the live database was not touched.
type RestoreVerificationError struct {
	Path string
	Err  error
}

func (e *RestoreVerificationError) Error() string {
	return fmt.Sprintf("restore verification failed for %s: %v", e.Path, e.Err)
}

func (e *RestoreVerificationError) Unwrap() error {
	return e.Err
}

// NoBackupFoundError reports that the requested bundle does not exist or
// cannot be restored. Name is empty when the latest bundle was requested.
type NoBackupFoundError struct {
	Name string
}

func (e *NoBackupFoundError) Error() string {
	if e.Name == "" {
		return "no restorable backup found"
	}
	return fmt.Sprintf("no restorable backup named %q", e.Name)
}

// Unwrap lets callers match with errors.Is(err, dumpstore.ErrBundleNotFound).
func (e *NoBackupFoundError) Unwrap() error {
	return dumpstore.ErrBundleNotFound
}
