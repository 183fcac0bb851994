// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
passphrase.go - Encryption Passphrase Policy

The backup passphrase is the only secret protecting every bundle at rest;
scrypt slows guessing but cannot rescue a dictionary word. The policy
favours length over character classes (NIST SP 800-63B): a long passphrase
of lowercase words passes, a short one with symbols does not.
*/

//nolint:staticcheck // File documentation, not package doc
package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// PassphrasePolicy defines requirements for the backup encryption passphrase.
type PassphrasePolicy struct {
	// MinLength is the minimum length in characters.
	MinLength int

	// MinClassesShort is the number of character classes required when the
	// passphrase is shorter than LongLength. 0 disables the check.
	MinClassesShort int

	// LongLength is the length from which character classes stop mattering.
	LongLength int

	// MaxConsecutiveRepeats is the maximum run of one character (0 = disabled).
	MaxConsecutiveRepeats int

	// ForbidCommon rejects well-known passwords.
	ForbidCommon bool

	// ForbidReuse rejects a passphrase equal to or containing the database password.
	ForbidReuse bool
}

// DefaultPassphrasePolicy returns the production policy.
func DefaultPassphrasePolicy() PassphrasePolicy {
	return PassphrasePolicy{
		MinLength:             12,
		MinClassesShort:       3,
		LongLength:            20,
		MaxConsecutiveRepeats: 3,
		ForbidCommon:          true,
		ForbidReuse:           true,
	}
}

// PassphraseStrength is a coarse strength estimate.
type PassphraseStrength int

const (
	PassphraseStrengthWeak PassphraseStrength = iota
	PassphraseStrengthFair
	PassphraseStrengthGood
	PassphraseStrengthStrong
)

func (s PassphraseStrength) String() string {
	switch s {
	case PassphraseStrengthWeak:
		return "weak"
	case PassphraseStrengthFair:
		return "fair"
	case PassphraseStrengthGood:
		return "good"
	case PassphraseStrengthStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// PassphraseResult reports the outcome of a policy check.
type PassphraseResult struct {
	Valid    bool
	Errors   []string
	Strength PassphraseStrength
}

// Err returns nil for a valid passphrase and the joined problems otherwise.
func (r PassphraseResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New(strings.Join(r.Errors, "; "))
}

// Check evaluates passphrase. dbPassword is used for the reuse check and may
// be empty.
func (p PassphrasePolicy) Check(passphrase, dbPassword string) PassphraseResult {
	result := PassphraseResult{Valid: true}
	fail := func(msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, msg)
	}

	length := len([]rune(passphrase))
	if length < p.MinLength {
		fail(fmt.Sprintf("must be at least %d characters (got %d)", p.MinLength, length))
	}

	classes := countClasses(passphrase)
	if p.MinClassesShort > 0 && length < p.LongLength && classes < p.MinClassesShort {
		fail(fmt.Sprintf("passphrases shorter than %d characters need %d of: upper case, lower case, digits, symbols",
			p.LongLength, p.MinClassesShort))
	}

	if p.MaxConsecutiveRepeats > 0 && longestRun(passphrase) > p.MaxConsecutiveRepeats {
		fail(fmt.Sprintf("must not repeat a character more than %d times in a row", p.MaxConsecutiveRepeats))
	}

	if p.ForbidCommon && isCommon(passphrase) {
		fail("is a well-known password")
	}

	if p.ForbidReuse && dbPassword != "" && strings.Contains(passphrase, dbPassword) {
		fail("must not reuse DATABASE_PASSWORD")
	}

	result.Strength = estimateStrength(length, classes, passphrase)
	return result
}

func countClasses(s string) int {
	var upper, lower, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{upper, lower, digit, other} {
		if b {
			n++
		}
	}
	return n
}

func longestRun(s string) int {
	longest, run := 0, 0
	var last rune
	for i, r := range []rune(s) {
		if i > 0 && r == last {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
		last = r
	}
	return longest
}

func estimateStrength(length, classes int, s string) PassphraseStrength {
	score := classes
	switch {
	case length >= 24:
		score += 4
	case length >= 20:
		score += 3
	case length >= 16:
		score += 2
	case length >= 12:
		score++
	}
	if hasSequence(s) {
		score--
	}

	switch {
	case score >= 6:
		return PassphraseStrengthStrong
	case score >= 4:
		return PassphraseStrengthGood
	case score >= 2:
		return PassphraseStrengthFair
	default:
		return PassphraseStrengthWeak
	}
}

// hasSequence reports runs such as "abc", "321" or "qwerty".
func hasSequence(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"qwerty", "asdf", "zxcv", "qazwsx", "1qaz"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	runes := []rune(lower)
	steps := 0
	for i := 1; i < len(runes); i++ {
		if d := runes[i] - runes[i-1]; d == 1 || d == -1 {
			steps++
			if steps >= 2 {
				return true
			}
		} else {
			steps = 0
		}
	}
	return false
}

var commonPasswords = map[string]bool{
	"123456":         true,
	"12345678":       true,
	"123456789":      true,
	"1234567890":     true,
	"123456789012":   true,
	"password":       true,
	"password123":    true,
	"password1234":   true,
	"passw0rd":       true,
	"qwerty":         true,
	"qwertyuiop":     true,
	"qwerty123456":   true,
	"letmein":        true,
	"changeme":       true,
	"changeme123":    true,
	"administrator":  true,
	"welcome123456":  true,
	"iloveyou":       true,
	"backup":         true,
	"backuppassword": true,
	"encryptionkey":  true,
	"messenger":      true,
}

func isCommon(s string) bool {
	return commonPasswords[strings.ToLower(s)]
}
