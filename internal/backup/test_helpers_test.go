// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package backup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/dumpvault/internal/cryptostream"
	"github.com/tomtom215/dumpvault/internal/dumpstore"
)

const testPassword = "correct-horse-battery-staple"

// fakeEngine stands in for SQL Server: BACKUP writes content to the path,
// RESTORE captures whatever the staging file holds.
type fakeEngine struct {
	mu         sync.Mutex
	content    []byte
	backupErr  error
	verifyErr  error
	restoreErr error

	verified []string
	restored []byte
	restores int
}

func (e *fakeEngine) BackupDatabase(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backupErr != nil {
		return e.backupErr
	}
	return os.WriteFile(path, e.content, 0o600)
}

func (e *fakeEngine) VerifyBackup(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verified = append(e.verified, path)
	return e.verifyErr
}

func (e *fakeEngine) RestoreDatabase(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restores++
	if e.restoreErr != nil {
		return e.restoreErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e.restored = data
	return nil
}

// testEnv holds a store rooted in a temp dir and a cheap crypto factory.
type testEnv struct {
	root    string
	store   *dumpstore.Store
	factory *cryptostream.Factory
	engine  *fakeEngine
}

func newTestEnv(t *testing.T, maxBundles int) *testEnv {
	t.Helper()

	root := filepath.Join(t.TempDir(), "dumps")

	// Each call advances the clock by a second so bundle names never collide.
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	store, err := dumpstore.New(root, maxBundles, dumpstore.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
	if err != nil {
		t.Fatalf("dumpstore.New() error = %v", err)
	}

	return &testEnv{
		root:    root,
		store:   store,
		factory: newTestFactory(t, testPassword),
		engine:  &fakeEngine{content: []byte("TAPE header and pages of the messenger database")},
	}
}

func newTestFactory(t *testing.T, password string) *cryptostream.Factory {
	t.Helper()
	f, err := cryptostream.NewFactory(password,
		cryptostream.WithKDFParams(cryptostream.KDFParams{N: 1024, R: 8, P: 1}))
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	return f
}

func (e *testEnv) pipeline(codec Codec) *Pipeline {
	return NewPipeline(e.store, e.engine, e.factory, codec)
}

func (e *testEnv) restorer() *Restorer {
	return NewRestorer(e.store, e.engine, e.factory)
}

// snapshot lists every path under root with its size, for no-write checks.
func snapshot(t *testing.T, root string) string {
	t.Helper()

	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		entries = append(entries, rel+":"+info.Mode().String()+":"+strconv.FormatInt(info.Size(), 10))
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n")
}
