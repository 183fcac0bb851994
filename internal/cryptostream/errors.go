// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package cryptostream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPassword is returned when the encryption password is not configured.
	ErrEmptyPassword = errors.New("encryption password cannot be empty")

	// ErrAuthentication is returned when the ciphertext MAC does not match.
	// This covers both a wrong password and a modified artifact.
	ErrAuthentication = errors.New("ciphertext authentication failed: wrong password or tampered data")

	// ErrPadding is returned when the final block does not carry valid padding.
	ErrPadding = errors.New("invalid padding: wrong password or corrupted data")

	// ErrTruncated is returned when the ciphertext is not a whole number of blocks.
	ErrTruncated = errors.New("ciphertext is truncated")

	// ErrInvalidMetadata is returned when metadata.json is unreadable or malformed.
	ErrInvalidMetadata = errors.New("invalid crypto metadata")

	// ErrMissingMAC is returned in strict mode for metadata without a MAC.
	ErrMissingMAC = errors.New("metadata has no mac and unauthenticated bundles are refused")

	// ErrClosed is returned when writing to a closed encrypter.
	ErrClosed = errors.New("encrypter is closed")
)

// CryptoError reports a key derivation, cipher, or metadata failure.
// Any CryptoError aborts the pipeline that produced it.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

func cryptoErr(op string, err error) error {
	return &CryptoError{Op: op, Err: err}
}
