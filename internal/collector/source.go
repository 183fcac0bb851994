// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package collector

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/tomtom215/dumpvault/internal/database"
)

// Source maps an upload directory to the column that references its files.
type Source struct {
	Dir    string // relative to the uploads root
	Table  string
	Column string
	Prefix string // prepended to each relative path before lookup
}

// String renders the source in the same form ParseSource accepts.
func (s Source) String() string {
	out := s.Dir + ":" + s.Table + "." + s.Column
	if s.Prefix != "" {
		out += "=" + s.Prefix
	}
	return out
}

// ParseSource parses "dir:table.column[=prefix]".
func ParseSource(spec string) (Source, error) {
	spec = strings.TrimSpace(spec)
	dir, ref, ok := strings.Cut(spec, ":")
	if !ok || dir == "" || ref == "" {
		return Source{}, fmt.Errorf("invalid cleanup source %q: want dir:table.column[=prefix]", spec)
	}

	ref, prefix, _ := strings.Cut(ref, "=")
	table, column, ok := strings.Cut(ref, ".")
	if !ok {
		return Source{}, fmt.Errorf("invalid cleanup source %q: missing column", spec)
	}
	if !database.ValidIdentifier(table) || !database.ValidIdentifier(column) {
		return Source{}, fmt.Errorf("invalid cleanup source %q: %w", spec, database.ErrInvalidIdentifier)
	}

	clean := filepath.ToSlash(filepath.Clean(dir))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return Source{}, fmt.Errorf("invalid cleanup source %q: directory must stay below the uploads root", spec)
	}

	return Source{Dir: clean, Table: table, Column: column, Prefix: prefix}, nil
}

// ParseSources parses a comma separated list of sources.
func ParseSources(list string) ([]Source, error) {
	var sources []Source
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseSource(part)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}
