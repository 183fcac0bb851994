// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/backup"
	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/logging"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take one encrypted backup into a new bundle",
	Long: `backup writes a native SQL Server backup into a new bundle directory,
verifies it, compresses and encrypts it into backup.enc, removes the
plaintext and applies retention (DATABASE_MAX_BACKUPS).

The SQL Server instance writes the native backup itself, so BACKUP_DIR must
be the same path on the database host (for example a shared volume).`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(_ *cobra.Command, _ []string) error {
	a := current
	defer a.manager.Recover()

	store, err := a.store()
	if err != nil {
		return err
	}
	crypto, err := a.crypto()
	if err != nil {
		return err
	}
	codec, err := a.cfg.Codec()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	if err := a.manager.Registry().Register("cancel backup", func(context.Context) error {
		cancel()
		return nil
	}); err != nil {
		return err
	}

	engine, err := database.Open(ctx, a.cfg.SQLServer(), a.cfg.Database.Name)
	if err != nil {
		return err
	}
	a.manager.AddCloser("database", engine)

	report, err := backup.NewPipeline(store, engine, crypto, codec).Run(ctx)
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Str("bundle", report.Bundle.Name).
		Int64("raw_bytes", report.RawBytes).
		Int64("encrypted_bytes", report.EncryptedBytes).
		Str("sha256", report.Checksum).
		Dur("duration", report.Duration).
		Msg("Backup finished")
	return nil
}
