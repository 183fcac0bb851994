// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package dumpstore

import (
	"errors"
	"fmt"
)

var (
	// ErrBundleNotFound is returned when a named or latest bundle does not exist.
	ErrBundleNotFound = errors.New("backup bundle not found")

	// ErrLocked is returned when another process holds the retention lock.
	ErrLocked = errors.New("retention directory is locked by another process")

	// ErrInvalidBundleName is returned for names that are not plain bundle directory names.
	ErrInvalidBundleName = errors.New("invalid bundle name")
)

// StorageError reports a failure to create, probe, rotate or lock the
// retention directory.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
