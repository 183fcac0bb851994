// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
restore.go - Restore Pipeline

Reader chain:

	backup.enc -> decrypter -> decompressor -> restore.bak

The decrypter only authenticates once it reaches the end of the ciphertext.
Decompression can fail earlier on garbage (wrong password, tampering), so
on any error the remaining ciphertext is drained and an authentication
failure, if there is one, is reported instead of the decompressor's error.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dumpvault/internal/cryptostream"
	"github.com/tomtom215/dumpvault/internal/database"
	"github.com/tomtom215/dumpvault/internal/dumpstore"
	"github.com/tomtom215/dumpvault/internal/logging"
	"github.com/tomtom215/dumpvault/internal/metrics"
)

// RestoreReport describes a successful restore.
type RestoreReport struct {
	Bundle   *dumpstore.Bundle
	Bytes    int64 // size of the decrypted backup file
	Duration time.Duration
}

// Restorer replaces the live database with the contents of a bundle.
// The engine must be connected to the master database.
type Restorer struct {
	store  *dumpstore.Store
	engine database.Engine
	crypto *cryptostream.Factory
	logger zerolog.Logger
}

// NewRestorer creates a restore pipeline.
func NewRestorer(store *dumpstore.Store, engine database.Engine, crypto *cryptostream.Factory) *Restorer {
	return &Restorer{
		store:  store,
		engine: engine,
		crypto: crypto,
		logger: logging.WithComponent("restore"),
	}
}

// Run restores the named bundle, or the newest restorable bundle when name
// is empty. The caller is responsible for stopping the live service first.
func (r *Restorer) Run(ctx context.Context, name string) (*RestoreReport, error) {
	start := time.Now()
	report, err := r.run(ctx, name)
	metrics.RecordRestore(time.Since(start), err)
	return report, err
}

func (r *Restorer) run(ctx context.Context, name string) (*RestoreReport, error) {
	start := time.Now()

	bundle, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	log := r.logger.With().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Str("bundle", bundle.Name).
		Logger()

	lock, err := r.store.Lock()
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock, &log)

	staging := bundle.StagingPath()
	defer func() {
		if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", staging).Msg("Failed to remove staging file")
		}
	}()

	log.Info().Msg("Starting restore")

	size, err := r.unseal(ctx, bundle, staging)
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("bytes", size).Msg("Backup decrypted")

	if err := r.engine.VerifyBackup(ctx, staging); err != nil {
		return nil, &RestoreVerificationError{Path: staging, Err: err}
	}
	if err := r.engine.RestoreDatabase(ctx, staging); err != nil {
		return nil, fmt.Errorf("failed to restore database from %s: %w", bundle.Name, err)
	}

	report := &RestoreReport{Bundle: bundle, Bytes: size, Duration: time.Since(start)}
	log.Info().Dur("duration", report.Duration).Msg("Restore completed")
	return report, nil
}

// resolve finds the bundle without writing anything.
func (r *Restorer) resolve(name string) (*dumpstore.Bundle, error) {
	if name == "" {
		bundle, err := r.store.Latest()
		if errors.Is(err, dumpstore.ErrBundleNotFound) {
			return nil, &NoBackupFoundError{}
		}
		return bundle, err
	}

	bundle, err := r.store.Resolve(name)
	switch {
	case errors.Is(err, dumpstore.ErrBundleNotFound), errors.Is(err, dumpstore.ErrInvalidBundleName):
		return nil, &NoBackupFoundError{Name: name}
	case err != nil:
		return nil, err
	case !bundle.Restorable():
		return nil, &NoBackupFoundError{Name: name}
	}
	return bundle, nil
}

// unseal decrypts and decompresses the artifact into the staging file.
func (r *Restorer) unseal(ctx context.Context, bundle *dumpstore.Bundle, staging string) (int64, error) {
	//nolint:gosec // G304: path is built from the managed bundle directory
	src, err := os.Open(bundle.EncryptedPath())
	if err != nil {
		return 0, &dumpstore.StorageError{Op: "open artifact", Path: bundle.EncryptedPath(), Err: err}
	}
	defer closeQuietly(src)

	plain, err := r.crypto.NewDecrypter(bundle.Dir, &contextReader{ctx: ctx, r: src})
	if err != nil {
		return 0, err
	}

	decomp, err := NewReader(plain)
	if err != nil {
		return 0, authenticateFirst(plain, err)
	}
	defer closeQuietly(decomp)

	//nolint:gosec // G304: path is built from the managed bundle directory
	dst, err := os.OpenFile(staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, artifactMode)
	if err != nil {
		return 0, &dumpstore.StorageError{Op: "create staging file", Path: staging, Err: err}
	}
	defer closeQuietly(dst)

	n, err := io.Copy(dst, decomp)
	if err != nil {
		return 0, authenticateFirst(plain, fmt.Errorf("failed to decompress artifact: %w", err))
	}
	// The decompressor may stop at its own trailer; read the rest so the
	// MAC is always checked.
	if _, err := io.Copy(io.Discard, plain); err != nil {
		return 0, err
	}

	if err := dst.Sync(); err != nil {
		return 0, &dumpstore.StorageError{Op: "sync staging file", Path: staging, Err: err}
	}
	return n, nil
}

// authenticateFirst drains the decrypter and prefers its error over cause.
func authenticateFirst(plain io.Reader, cause error) error {
	var cryptoErr *cryptostream.CryptoError
	if errors.As(cause, &cryptoErr) {
		return cause
	}
	if _, err := io.Copy(io.Discard, plain); err != nil && errors.As(err, &cryptoErr) {
		return err
	}
	return cause
}
