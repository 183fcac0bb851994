// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/backup"
	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/logging"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [bundle]",
	Short: "Restore the named bundle, or the newest restorable one",
	Long: `restore decrypts and decompresses a bundle next to its artifact, verifies
the result with RESTORE VERIFYONLY and replaces the database with it.

Stop the messenger service first: restore needs exclusive access to the
database and does not stop anything itself.`,
	Example: `  dumpvault restore
  dumpvault restore dump_2026-03-01T03-00-00.000000000Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(_ *cobra.Command, args []string) error {
	a := current
	defer a.manager.Recover()

	var name string
	if len(args) == 1 {
		name = args[0]
	}

	store, err := a.store()
	if err != nil {
		return err
	}
	crypto, err := a.crypto()
	if err != nil {
		return err
	}

	// The target database cannot be replaced while connected to it.
	engine, err := database.Open(a.ctx, a.cfg.SQLServer(), database.MasterDatabase)
	if err != nil {
		return err
	}
	a.manager.AddCloser("database", engine)

	report, err := backup.NewRestorer(store, engine, crypto).Run(a.ctx, name)
	if err != nil {
		return err
	}

	logging.Ctx(a.ctx).Info().
		Str("bundle", report.Bundle.Name).
		Int64("bytes", report.Bytes).
		Dur("duration", report.Duration).
		Msg("Restore finished")
	return nil
}
