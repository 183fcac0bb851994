// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeQuerier answers reference lookups from an in-memory set.
type fakeQuerier struct {
	mu         sync.Mutex
	referenced map[string]bool
	batches    []int
	err        error
}

func newFakeQuerier(refs ...string) *fakeQuerier {
	q := &fakeQuerier{referenced: make(map[string]bool)}
	for _, r := range refs {
		q.referenced[r] = true
	}
	return q
}

func (q *fakeQuerier) ReferencedPaths(_ context.Context, _, _ string, paths []string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = append(q.batches, len(paths))
	if q.err != nil {
		return nil, q.err
	}
	var out []string
	for _, p := range paths {
		if q.referenced[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// writeFiles creates each relative path under root.
func writeFiles(t *testing.T, root string, paths []string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(p), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func remaining(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

func TestCollectorOrphansAreDifference(t *testing.T) {
	// D: 2500 files, R: every third one.
	var all, refs, wantOrphans, wantKept []string
	for i := 0; i < 2500; i++ {
		p := fmt.Sprintf("avatars/%02d/user-%04d.png", i%17, i)
		all = append(all, p)
		if i%3 == 0 {
			refs = append(refs, p)
			wantKept = append(wantKept, p)
		} else {
			wantOrphans = append(wantOrphans, p)
		}
	}
	sort.Strings(wantOrphans)
	sort.Strings(wantKept)

	for _, batchSize := range []int{1, 1000, len(all)} {
		t.Run(fmt.Sprintf("batch=%d", batchSize), func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, all)
			q := newFakeQuerier(refs...)

			c, err := New(Config{
				Root:        root,
				Sources:     []Source{{Dir: "avatars", Table: "users", Column: "avatar", Prefix: "avatars/"}},
				BatchSize:   batchSize,
				Concurrency: 4,
			}, q)
			if err != nil {
				t.Fatal(err)
			}

			summary, err := c.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if strings.Join(summary.OrphanPaths, "\n") != strings.Join(wantOrphans, "\n") {
				t.Errorf("orphan set differs from D \\ R: got %d, want %d", len(summary.OrphanPaths), len(wantOrphans))
			}
			if summary.Scanned != len(all) || summary.Referenced != len(refs) {
				t.Errorf("scanned=%d referenced=%d", summary.Scanned, summary.Referenced)
			}
			if summary.Deleted != len(wantOrphans) || summary.Failed != 0 {
				t.Errorf("deleted=%d failed=%d", summary.Deleted, summary.Failed)
			}
			if got := remaining(t, root); strings.Join(got, "\n") != strings.Join(wantKept, "\n") {
				t.Errorf("remaining files differ from R: got %d, want %d", len(got), len(wantKept))
			}

			for _, n := range q.batches {
				if n > batchSize {
					t.Errorf("batch of %d exceeds batch size %d", n, batchSize)
				}
			}
			wantBatches := (len(all) + batchSize - 1) / batchSize
			if len(q.batches) != wantBatches {
				t.Errorf("queries = %d, want %d", len(q.batches), wantBatches)
			}
		})
	}
}

func TestCollectorDeleteFailureIsNonFatal(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, []string{"files/a.bin", "files/b.bin", "files/c.bin"})

	stuck := filepath.Join(root, "files", "b.bin")
	removeErr := errors.New("permission denied")
	c, err := New(Config{
		Root:    root,
		Sources: []Source{{Dir: "files", Table: "messages", Column: "file"}},
	}, newFakeQuerier(), WithRemoveFunc(func(path string) error {
		if path == stuck {
			return removeErr
		}
		return os.Remove(path)
	}))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("per-file failure must not fail the run: %v", err)
	}
	if summary.Deleted != 2 || summary.Failed != 1 {
		t.Errorf("deleted=%d failed=%d, want 2 and 1", summary.Deleted, summary.Failed)
	}
	if len(summary.Errors) != 1 || !errors.Is(summary.Errors[0], removeErr) {
		t.Fatalf("errors = %v", summary.Errors)
	}
	if !strings.Contains(summary.Errors[0].Error(), "b.bin") {
		t.Errorf("error should name the file: %v", summary.Errors[0])
	}
	if got := remaining(t, root); len(got) != 1 || got[0] != "files/b.bin" {
		t.Errorf("remaining = %v", got)
	}
}

func TestCollectorQueryFailureAborts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, []string{"files/a.bin", "files/b.bin"})
	q := newFakeQuerier()
	q.err = errors.New("connection refused")

	c, err := New(Config{
		Root:    root,
		Sources: []Source{{Dir: "files", Table: "messages", Column: "file"}},
	}, q)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Run(context.Background()); !errors.Is(err, q.err) {
		t.Fatalf("expected query error, got %v", err)
	}
	if got := remaining(t, root); len(got) != 2 {
		t.Errorf("nothing may be deleted when the database is unreachable, remaining = %v", got)
	}
}

func TestCollectorDryRun(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, []string{"files/keep.bin", "files/orphan.bin"})

	c, err := New(Config{
		Root:    root,
		Sources: []Source{{Dir: "files", Table: "messages", Column: "file", Prefix: "files/"}},
		DryRun:  true,
	}, newFakeQuerier("files/keep.bin"))
	if err != nil {
		t.Fatal(err)
	}

	count, err := c.Work(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Work() = %d orphans, want 1", count)
	}
	if got := remaining(t, root); len(got) != 2 {
		t.Errorf("dry run deleted files: remaining = %v", got)
	}
}

func TestCollectorMissingSourceDir(t *testing.T) {
	c, err := New(Config{
		Root:    t.TempDir(),
		Sources: []Source{{Dir: "never-created", Table: "users", Column: "avatar"}},
	}, newFakeQuerier())
	if err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("missing dir should be treated as empty: %v", err)
	}
	if summary.Scanned != 0 {
		t.Errorf("Scanned = %d", summary.Scanned)
	}
}

func TestCollectorCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, []string{"files/a.bin"})
	c, err := New(Config{
		Root:             root,
		Sources:          []Source{{Dir: "files", Table: "messages", Column: "file"}},
		BatchesPerSecond: 100,
	}, newFakeQuerier())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := remaining(t, root); len(got) != 1 {
		t.Error("cancelled run must not delete")
	}
}

func TestNewValidation(t *testing.T) {
	q := newFakeQuerier()
	if _, err := New(Config{}, q); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := New(Config{Root: "/x", BatchSize: 5000}, q); err != nil {
		t.Errorf("batch size above the parameter limit should be accepted: %v", err)
	}
	if _, err := New(Config{Root: "/x", BatchSize: -1}, q); err == nil {
		t.Error("expected error for negative batch size")
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		input   string
		want    Source
		wantErr bool
	}{
		{"avatars:users.avatar", Source{Dir: "avatars", Table: "users", Column: "avatar"}, false},
		{"avatars:users.avatar=avatars/", Source{Dir: "avatars", Table: "users", Column: "avatar", Prefix: "avatars/"}, false},
		{" media/photos/:messages.photo ", Source{Dir: "media/photos", Table: "messages", Column: "photo"}, false},
		{"avatars", Source{}, true},
		{"avatars:users", Source{}, true},
		{"avatars:users;drop.x", Source{}, true},
		{"../etc:users.avatar", Source{}, true},
		{"/abs:users.avatar", Source{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSource() = %+v, want %+v", got, tt.want)
			}
		})
	}

	sources, err := ParseSources("avatars:users.avatar, ,files:messages.file=files/")
	if err != nil || len(sources) != 2 {
		t.Fatalf("ParseSources() = %v, %v", sources, err)
	}
	if sources[1].String() != "files:messages.file=files/" {
		t.Errorf("String() = %q", sources[1].String())
	}
}
