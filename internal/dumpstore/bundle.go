// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package dumpstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/dumpvault/internal/cryptostream"
)

// File names inside a bundle directory.
const (
	RawFile       = "backup.bak"
	EncryptedFile = "backup.enc"
	MetadataFile  = cryptostream.MetadataFile
	StagingFile   = "restore.bak"

	// PartialSuffix marks an artifact that is still being written.
	PartialSuffix = ".partial"
)

const (
	bundlePrefix = "dump_"

	// timestampLayout is filesystem safe and sorts lexically in time order.
	timestampLayout = "2006-01-02T15-04-05.000000000Z"
)

// Bundle is one backup attempt's directory of artifacts.
type Bundle struct {
	Name      string    `json:"name"`
	Dir       string    `json:"dir"`
	CreatedAt time.Time `json:"created_at"`
}

// RawPath returns the path of the native backup file.
func (b *Bundle) RawPath() string { return filepath.Join(b.Dir, RawFile) }

// EncryptedPath returns the path of the final artifact.
func (b *Bundle) EncryptedPath() string { return filepath.Join(b.Dir, EncryptedFile) }

// MetadataPath returns the path of the crypto metadata record.
func (b *Bundle) MetadataPath() string { return filepath.Join(b.Dir, MetadataFile) }

// StagingPath returns the path restore decrypts into before verification.
func (b *Bundle) StagingPath() string { return filepath.Join(b.Dir, StagingFile) }

// Restorable reports whether the artifact and its metadata are both present.
func (b *Bundle) Restorable() bool {
	return fileExists(b.EncryptedPath()) && fileExists(b.MetadataPath())
}

// Complete reports whether the bundle was finalized: artifact and metadata
// written and the plaintext backup removed.
func (b *Bundle) Complete() bool {
	return b.Restorable() && !fileExists(b.RawPath())
}

// bundleName formats the directory name for a creation time.
func bundleName(t time.Time) string {
	return bundlePrefix + t.UTC().Format(timestampLayout)
}

// parseBundleName extracts the creation time encoded in a directory name.
func parseBundleName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, bundlePrefix) {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, strings.TrimPrefix(name, bundlePrefix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// validateName rejects anything that is not a bare bundle directory name.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		!strings.HasPrefix(name, bundlePrefix) {
		return ErrInvalidBundleName
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
