// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package logging

import (
	"strings"
	"testing"
)

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"short", "***"},
		{"correct-horse-battery", "co***ry"},
	}

	for _, tt := range tests {
		if got := RedactSecret(tt.input); got != tt.want {
			t.Errorf("RedactSecret(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	got := RedactDSN("sqlserver://sa:S3cret!@db:1433?database=messenger&password=other")

	if strings.Contains(got, "S3cret") || strings.Contains(got, "other") {
		t.Errorf("RedactDSN leaked a password: %s", got)
	}
	if !strings.Contains(got, "sa:xxxxx@db:1433") {
		t.Errorf("RedactDSN dropped the user or host: %s", got)
	}
	if !strings.Contains(got, "database=messenger") {
		t.Errorf("RedactDSN dropped a harmless option: %s", got)
	}

	if RedactDSN("not a url") != "***" {
		t.Error("unparseable DSN should be fully masked")
	}
}

func TestRedactValue(t *testing.T) {
	if got := RedactValue("DATABASE_ENCRYPTION_PASSWORD", "correct-horse-battery"); got == "correct-horse-battery" {
		t.Error("password value was not redacted")
	}
	if got := RedactValue("BACKUP_DIR", "/data/dumps"); got != "/data/dumps" {
		t.Errorf("non-secret value changed: %q", got)
	}
}
