// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/collector"
	"github.com/tomtom215/dumpvault/internal/dumpstore"
)

func TestCommandTree(t *testing.T) {
	want := []string{"backup", "collect", "list", "restore", "serve", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}

	if f := collectCmd.Flags().Lookup("dry-run"); f == nil || f.DefValue != "false" {
		t.Error("collect --dry-run flag missing or not defaulting to false")
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("--config persistent flag missing")
	}
}

func TestRestoreArgs(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{nil, false},
		{[]string{"dump_2026-01-01T03-00-00.000000000Z"}, false},
		{[]string{"a", "b"}, true},
	}
	for _, tt := range tests {
		err := restoreCmd.Args(restoreCmd, tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("Args(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
	}
	if err := backupCmd.Args(backupCmd, []string{"extra"}); err == nil {
		t.Error("backup should reject positional arguments")
	}
}

func TestNeedsSetup(t *testing.T) {
	if needsSetup(versionCmd) {
		t.Error("version must run without configuration")
	}
	for _, cmd := range []*cobra.Command{backupCmd, restoreCmd, collectCmd, listCmd, serveCmd} {
		if !needsSetup(cmd) {
			t.Errorf("%s should load configuration", cmd.Name())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(out.String(), "dumpvault "+version+" (go") {
		t.Errorf("version output = %q", out.String())
	}
}

func makeBundle(t *testing.T, root, name string, files map[string]int) *dumpstore.Bundle {
	t.Helper()
	b := &dumpstore.Bundle{Name: name, Dir: filepath.Join(root, name), CreatedAt: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)}
	if err := os.MkdirAll(b.Dir, 0o750); err != nil {
		t.Fatal(err)
	}
	for f, size := range files {
		if err := os.WriteFile(filepath.Join(b.Dir, f), make([]byte, size), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestBundleRows(t *testing.T) {
	root := t.TempDir()
	bundles := []*dumpstore.Bundle{
		makeBundle(t, root, "dump_c", map[string]int{dumpstore.EncryptedFile: 2048, dumpstore.MetadataFile: 10}),
		makeBundle(t, root, "dump_b", map[string]int{dumpstore.EncryptedFile: 16, dumpstore.MetadataFile: 10, dumpstore.RawFile: 5}),
		makeBundle(t, root, "dump_a", map[string]int{dumpstore.RawFile: 5}),
	}

	rows := bundleRows(bundles)
	wantStates := []string{"complete", "restorable", "incomplete"}
	for i, r := range rows {
		if r.State != wantStates[i] {
			t.Errorf("%s state = %q, want %q", r.Name, r.State, wantStates[i])
		}
	}
	if rows[0].SizeBytes != 2048 || rows[2].SizeBytes != 0 {
		t.Errorf("sizes = %d, %d", rows[0].SizeBytes, rows[2].SizeBytes)
	}

	var table bytes.Buffer
	if err := writeBundles(&table, rows, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "NAME") {
		t.Fatalf("table = %q", table.String())
	}
	if !strings.Contains(lines[1], "dump_c") || !strings.Contains(lines[1], "2.0 KiB") {
		t.Errorf("first row = %q", lines[1])
	}

	var js bytes.Buffer
	if err := writeBundles(&js, rows, true); err != nil {
		t.Fatal(err)
	}
	var decoded []bundleRow
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("list --json output is not JSON: %v", err)
	}
	if len(decoded) != 3 || decoded[1].Name != "dump_b" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteBundlesEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := writeBundles(&out, nil, false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "no bundles\n" {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := writeBundles(&out, []bundleRow{}, true); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("json output = %q", out.String())
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
		3 << 30:         "3.0 GiB",
	}
	for n, want := range tests {
		if got := humanBytes(n); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestPrintOrphans(t *testing.T) {
	var out bytes.Buffer
	printOrphans(&out, &collector.Summary{Scanned: 5, Orphans: 2, OrphanPaths: []string{"a.png", "b.png"}})
	if out.String() != "a.png\nb.png\n2 orphans among 5 files\n" {
		t.Errorf("output = %q", out.String())
	}
}
