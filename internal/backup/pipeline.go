// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
pipeline.go - Backup Pipeline

Writer chain for step 4:

	backup.bak -> compressor -> encrypter -> (sha256, counter) -> backup.enc.partial

io.Copy moves one 32 KiB buffer at a time, so memory stays flat regardless
of database size. The artifact is renamed into place only after fsync, which
makes backup.enc either absent or complete.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
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

const artifactMode = 0o600

// Report describes a successful backup run.
type Report struct {
	Bundle         *dumpstore.Bundle
	RawBytes       int64
	EncryptedBytes int64
	Checksum       string // hex SHA-256 of backup.enc
	Duration       time.Duration
}

// Pipeline runs one backup into a fresh bundle.
type Pipeline struct {
	store  *dumpstore.Store
	engine database.Engine
	crypto *cryptostream.Factory
	codec  Codec
	logger zerolog.Logger
}

// NewPipeline creates a backup pipeline. codec selects the compression used
// for new artifacts.
func NewPipeline(store *dumpstore.Store, engine database.Engine, crypto *cryptostream.Factory, codec Codec) *Pipeline {
	return &Pipeline{
		store:  store,
		engine: engine,
		crypto: crypto,
		codec:  codec,
		logger: logging.WithComponent("backup"),
	}
}

// Run executes the pipeline. Any error aborts the run and leaves the bundle
// directory in place.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report, err := p.run(ctx)

	var size int64
	if report != nil {
		size = report.EncryptedBytes
	}
	metrics.RecordBackup(time.Since(start), size, err)
	return report, err
}

func (p *Pipeline) run(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := p.logger.With().Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()

	lock, err := p.store.Lock()
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock, &log)

	bundle, err := p.store.PrepareBundle()
	if err != nil {
		return nil, err
	}
	log = log.With().Str("bundle", bundle.Name).Logger()
	log.Info().Msg("Starting backup")

	raw := bundle.RawPath()
	if err := p.engine.BackupDatabase(ctx, raw); err != nil {
		return nil, fmt.Errorf("failed to back up database into %s: %w", bundle.Name, err)
	}
	log.Debug().Msg("Database backup written")

	if err := p.engine.VerifyBackup(ctx, raw); err != nil {
		return nil, &BackupVerificationError{Path: raw, Err: err}
	}
	log.Debug().Msg("Database backup verified")

	report, err := p.seal(ctx, bundle)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(raw); err != nil {
		return nil, &dumpstore.StorageError{Op: "remove raw backup", Path: raw, Err: err}
	}

	report.Bundle = bundle
	report.Duration = time.Since(start)
	log.Info().
		Int64("raw_bytes", report.RawBytes).
		Int64("encrypted_bytes", report.EncryptedBytes).
		Str("sha256", report.Checksum).
		Str("codec", string(p.codec)).
		Dur("duration", report.Duration).
		Msg("Backup completed")
	return report, nil
}

// seal compresses and encrypts the raw backup into backup.enc.
func (p *Pipeline) seal(ctx context.Context, bundle *dumpstore.Bundle) (report *Report, err error) {
	//nolint:gosec // G304: path is built from the managed bundle directory
	src, err := os.Open(bundle.RawPath())
	if err != nil {
		return nil, &dumpstore.StorageError{Op: "open raw backup", Path: bundle.RawPath(), Err: err}
	}
	defer closeQuietly(src)

	partial := bundle.EncryptedPath() + dumpstore.PartialSuffix
	//nolint:gosec // G304: path is built from the managed bundle directory
	dst, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, artifactMode)
	if err != nil {
		return nil, &dumpstore.StorageError{Op: "create artifact", Path: partial, Err: err}
	}
	defer func() {
		if err != nil {
			closeQuietly(dst)
			_ = os.Remove(partial)
		}
	}()

	sum := sha256.New()
	out := &countingWriter{w: io.MultiWriter(dst, sum)}

	enc, err := p.crypto.NewEncrypter(bundle.Dir, out)
	if err != nil {
		return nil, err
	}
	comp, err := p.codec.NewWriter(enc)
	if err != nil {
		return nil, err
	}

	in := &countingReader{r: &contextReader{ctx: ctx, r: src}}
	if _, err := io.Copy(comp, in); err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := comp.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish encryption: %w", err)
	}

	if err := dst.Sync(); err != nil {
		return nil, &dumpstore.StorageError{Op: "sync artifact", Path: partial, Err: err}
	}
	if err := dst.Close(); err != nil {
		return nil, &dumpstore.StorageError{Op: "close artifact", Path: partial, Err: err}
	}
	if err := os.Rename(partial, bundle.EncryptedPath()); err != nil {
		return nil, &dumpstore.StorageError{Op: "finalize artifact", Path: partial, Err: err}
	}

	return &Report{
		RawBytes:       in.n,
		EncryptedBytes: out.n,
		Checksum:       hexSum(sum),
	}, nil
}

func releaseLock(lock *dumpstore.Lock, log *zerolog.Logger) {
	if err := lock.Release(); err != nil {
		log.Warn().Err(err).Msg("Failed to release retention lock")
	}
}

func closeQuietly(c io.Closer) {
	_ = c.Close() //nolint:errcheck // best-effort cleanup on error paths
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// contextReader stops a long copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
