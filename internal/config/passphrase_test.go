// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package config

import (
	"strings"
	"testing"
)

func TestPassphrasePolicy_Check(t *testing.T) {
	policy := DefaultPassphrasePolicy()

	tests := []struct {
		name       string
		passphrase string
		dbPassword string
		wantValid  bool
		wantErr    string
	}{
		{"long lowercase passphrase", "correcthorsebatterystaple", "", true, ""},
		{"short but varied", "Tr0ub4dor&3x", "", true, ""},
		{"too short", "Tr0ub4dor&3", "", false, "at least 12 characters"},
		{"short and plain", "abcdefghijkmn", "", false, "need 3 of"},
		{"repeats", "aaaaBBBB1111!!!!", "", false, "more than 3 times"},
		{"common", "Password1234", "", false, "well-known"},
		{"reuse", "prefix-Sup3rS3cret!-suffix", "Sup3rS3cret!", false, "DATABASE_PASSWORD"},
		{"unicode length", "żółćżółćżółć", "", false, "need 3 of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := policy.Check(tt.passphrase, tt.dbPassword)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if tt.wantValid {
				if result.Err() != nil {
					t.Errorf("Err() = %v for a valid passphrase", result.Err())
				}
				return
			}
			if err := result.Err(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Err() = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestPassphraseStrength(t *testing.T) {
	policy := DefaultPassphrasePolicy()

	if s := policy.Check("correct-horse-battery-staple", "").Strength; s != PassphraseStrengthStrong {
		t.Errorf("long passphrase strength = %v, want strong", s)
	}
	if s := policy.Check("abc", "").Strength; s != PassphraseStrengthWeak {
		t.Errorf("short sequence strength = %v, want weak", s)
	}
	if PassphraseStrengthGood.String() != "good" || PassphraseStrength(99).String() != "unknown" {
		t.Error("unexpected String() output")
	}
}

func TestLongestRun(t *testing.T) {
	tests := map[string]int{"": 0, "a": 1, "aab": 2, "abbbc": 3, "ééé": 3}
	for in, want := range tests {
		if got := longestRun(in); got != want {
			t.Errorf("longestRun(%q) = %d, want %d", in, got, want)
		}
	}
}
