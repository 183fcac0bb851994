// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package dumpstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFile is the name of the retention lock inside the root.
const LockFile = ".dumpvault.lock"

// Lock is an exclusive advisory lock on the retention root.
// The kernel drops it if the holding process dies.
type Lock struct {
	path string
	file *os.File
}

// Lock acquires the retention lock without blocking.
// It returns a StorageError wrapping ErrLocked when another process holds it.
func (s *Store) Lock() (*Lock, error) {
	if err := os.MkdirAll(s.root, dirMode); err != nil {
		return nil, &StorageError{Op: "create root", Path: s.root, Err: err}
	}

	path := filepath.Join(s.root, LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is built from the configured root
	if err != nil {
		return nil, &StorageError{Op: "open lock", Path: path, Err: err}
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, &StorageError{Op: "lock", Path: path, Err: holderError(path)}
		}
		return nil, &StorageError{Op: "lock", Path: path, Err: err}
	}

	// Record the holder for operators; failure here does not affect the lock.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	if err := errors.Join(unlockErr, closeErr); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// holderError wraps ErrLocked with the pid recorded by the holder, if readable.
func holderError(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the configured root
	if err != nil {
		return ErrLocked
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return ErrLocked
	}
	return fmt.Errorf("%w (pid %s)", ErrLocked, pid)
}
