// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
store.go - Retention Directory Management

PrepareBundle is the only writer of the retention root:

 1. Ensure the root exists and is writable (probe file).
 2. Rotate: delete the oldest bundles until fewer than MaxBundles remain.
 3. Create a fresh dump_<timestamp> directory.

Ordering uses the timestamp encoded in the directory name. Directories whose
name does not parse fall back to their modification time so that a renamed
or hand-made directory is still rotated eventually.
*/

//nolint:staticcheck // File documentation, not package doc
package dumpstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/logging"
)

const (
	dirMode = 0o750

	// maxNameAttempts bounds the collision retry loop in PrepareBundle.
	maxNameAttempts = 16
)

// Store owns a retention root directory.
type Store struct {
	root       string
	maxBundles int
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to name bundles.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for rotation events.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store rooted at root that keeps at most maxBundles bundles.
func New(root string, maxBundles int, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("retention root is required")
	}
	if maxBundles < 1 {
		return nil, fmt.Errorf("max bundles must be at least 1, got %d", maxBundles)
	}

	s := &Store{
		root:       filepath.Clean(root),
		maxBundles: maxBundles,
		now:        time.Now,
		logger:     logging.WithComponent("dumpstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the retention root directory.
func (s *Store) Root() string {
	return s.root
}

// MaxBundles returns the retention count.
func (s *Store) MaxBundles() int {
	return s.maxBundles
}

// PrepareBundle rotates the retention root and creates a new bundle directory.
func (s *Store) PrepareBundle() (*Bundle, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}

	existing, err := s.List()
	if err != nil {
		return nil, err
	}
	if err := s.rotate(existing); err != nil {
		return nil, err
	}

	t := s.now().UTC()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := bundleName(t)
		dir := filepath.Join(s.root, name)

		err := os.Mkdir(dir, dirMode)
		if err == nil {
			s.logger.Debug().Str("bundle", name).Msg("Created bundle directory")
			return &Bundle{Name: name, Dir: dir, CreatedAt: t}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, &StorageError{Op: "create bundle", Path: dir, Err: err}
		}
		t = t.Add(time.Nanosecond)
	}

	return nil, &StorageError{
		Op:   "create bundle",
		Path: s.root,
		Err:  fmt.Errorf("no free bundle name after %d attempts", maxNameAttempts),
	}
}

// List returns all bundles under the root, newest first.
// A missing root yields an empty list.
func (s *Store) List() ([]*Bundle, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: s.root, Err: err}
	}

	bundles := make([]*Bundle, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if b, ok := s.bundleFromEntry(entry); ok {
			bundles = append(bundles, b)
		}
	}

	sortNewestFirst(bundles)
	return bundles, nil
}

// Latest returns the newest bundle that can be restored.
func (s *Store) Latest() (*Bundle, error) {
	bundles, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, b := range bundles {
		if b.Restorable() {
			return b, nil
		}
	}
	return nil, ErrBundleNotFound
}

// Resolve looks up a bundle by directory name without touching the disk
// beyond a stat.
func (s *Store) Resolve(name string) (*Bundle, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	dir := filepath.Join(s.root, name)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBundleNotFound
		}
		return nil, &StorageError{Op: "resolve", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, ErrBundleNotFound
	}

	created, ok := parseBundleName(name)
	if !ok {
		created = info.ModTime().UTC()
	}
	return &Bundle{Name: name, Dir: dir, CreatedAt: created}, nil
}

// ensureRoot creates the root if needed and checks that it is writable.
func (s *Store) ensureRoot() error {
	if err := os.MkdirAll(s.root, dirMode); err != nil {
		return &StorageError{Op: "create root", Path: s.root, Err: err}
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return &StorageError{Op: "probe root", Path: s.root, Err: err}
	}
	name := probe.Name()
	closeErr := probe.Close()
	removeErr := os.Remove(name)
	if err := errors.Join(closeErr, removeErr); err != nil {
		return &StorageError{Op: "probe root", Path: s.root, Err: err}
	}
	return nil
}

// rotate deletes the oldest bundles so that one slot is free for the new one.
// bundles must be sorted newest first.
func (s *Store) rotate(bundles []*Bundle) error {
	keep := s.maxBundles - 1
	if len(bundles) <= keep {
		return nil
	}

	for _, b := range bundles[keep:] {
		if err := os.RemoveAll(b.Dir); err != nil {
			return &StorageError{Op: "rotate", Path: b.Dir, Err: err}
		}
		s.logger.Info().
			Str("bundle", b.Name).
			Time("created_at", b.CreatedAt).
			Int("max_bundles", s.maxBundles).
			Msg("Rotated out old bundle")
	}
	return nil
}

func (s *Store) bundleFromEntry(entry os.DirEntry) (*Bundle, bool) {
	name := entry.Name()
	if validateName(name) != nil {
		return nil, false
	}

	created, ok := parseBundleName(name)
	if !ok {
		info, err := entry.Info()
		if err != nil {
			return nil, false
		}
		created = info.ModTime().UTC()
	}

	return &Bundle{Name: name, Dir: filepath.Join(s.root, name), CreatedAt: created}, true
}

// sortNewestFirst orders by creation time descending; equal times fall back
// to name order so the lexically smaller name is treated as older.
func sortNewestFirst(bundles []*Bundle) {
	sort.SliceStable(bundles, func(i, j int) bool {
		if !bundles[i].CreatedAt.Equal(bundles[j].CreatedAt) {
			return bundles[i].CreatedAt.After(bundles[j].CreatedAt)
		}
		return bundles[i].Name > bundles[j].Name
	})
}
