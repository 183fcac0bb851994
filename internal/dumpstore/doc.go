// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package dumpstore manages the retention directory that holds backup bundles.
//
// A bundle is one backup attempt's directory, named by its UTC creation time:
//
//	<root>/
//	  .dumpvault.lock
//	  dump_2026-10-19T03-00-00.000000000Z/
//	    backup.bak      transient native backup, removed once encrypted
//	    backup.enc      compressed and encrypted artifact
//	    metadata.json   salt, iv and timestamp for decryption
//
// PrepareBundle rotates the directory before creating a new bundle so that at
// most MaxBundles bundles remain once it returns. The oldest bundle is the one
// with the earliest timestamp in its name; ties are broken by name order.
//
// The store assumes a single writer. Lock takes an exclusive flock(2) on the
// root so that two backup or restore runs on the same host never interleave.
//
// Usage:
//
//	store, err := dumpstore.New("/data/dumps", 7)
//	lock, err := store.Lock()
//	defer lock.Release()
//	bundle, err := store.PrepareBundle()
//	// write bundle.RawPath(), bundle.EncryptedPath(), ...
package dumpstore
