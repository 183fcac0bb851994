// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/dumpvault/internal/logging"
)

var (
	// ErrInvalidIdentifier is returned for table or column names that are not
	// plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrTooManyParameters is returned when a batch exceeds the driver's
	// parameter limit.
	ErrTooManyParameters = errors.New("batch exceeds the SQL Server parameter limit")
)

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource on an error path where the close error is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
