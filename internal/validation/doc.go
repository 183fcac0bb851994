// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built on first use and shared; it caches
// struct metadata and is safe for concurrent use.
//
// # Field Names
//
// Errors name a field by its `env` tag when it has one, so configuration
// errors point at the variable the operator has to fix:
//
//	type DatabaseConfig struct {
//	    Port int `koanf:"port" env:"DATABASE_PORT" validate:"min=1,max=65535"`
//	}
//
//	// DATABASE_PORT must be at most 65535
//
// Fields without an env tag fall back to the koanf tag, then the Go name.
//
// # Custom Tags
//
//   - sqlident: a bare SQL identifier ([A-Za-z_][A-Za-z0-9_]*, at most 128)
//   - loglevel: a zerolog level name (trace through panic, or disabled)
package validation
