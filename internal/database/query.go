// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package database

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxParameters is the largest IN list a single query may carry.
// SQL Server rejects requests with more than 2100 parameters.
const MaxParameters = 2000

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain table or column name.
func ValidIdentifier(name string) bool {
	return len(name) <= 128 && identifierPattern.MatchString(name)
}

// quoteIdentifier brackets a validated identifier.
func quoteIdentifier(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return "[" + name + "]", nil
}

// buildReferenceQuery returns the lookup statement for n paths.
func buildReferenceQuery(table, column string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("reference query needs at least one path")
	}
	if n > MaxParameters {
		return "", fmt.Errorf("%w: %d > %d", ErrTooManyParameters, n, MaxParameters)
	}

	qt, err := quoteIdentifier(table)
	if err != nil {
		return "", err
	}
	qc, err := quoteIdentifier(column)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(64 + n*5)
	fmt.Fprintf(&b, "SELECT DISTINCT %s FROM %s WHERE %s IN (", qc, qt, qc)
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i)
	}
	b.WriteString(")")
	return b.String(), nil
}
