// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package backup produces and restores encrypted, compressed database backups.

# Backup

Pipeline.Run is sequential and fails fast:

 1. Take the retention lock and prepare a fresh dump_<timestamp> bundle
 2. BACKUP DATABASE into backup.bak (COPY_ONLY, CHECKSUM)
 3. RESTORE VERIFYONLY against backup.bak
 4. Stream backup.bak through the compressor and the encrypter into
    backup.enc.partial, fsync, rename to backup.enc
 5. Remove backup.bak

A failed run leaves the bundle directory in place for inspection. A
verification failure never produces backup.enc.

# Restore

Restorer.Run resolves a bundle by name (or the newest restorable one),
decrypts and decompresses backup.enc into restore.bak, verifies it, and
issues RESTORE DATABASE WITH REPLACE. The staging file is removed on every
exit path. Resolution happens before anything is written, so an unknown
bundle name leaves the disk untouched.

# Compression

Artifacts are gzip (BestCompression) by default or zstd
(SpeedBestCompression), both from github.com/klauspost/compress. The codec
is not recorded anywhere: restore detects it from the stream magic bytes.

# Usage

	pipeline := backup.NewPipeline(store, engine, factory, backup.CodecGzip)
	report, err := pipeline.Run(ctx)

	restorer := backup.NewRestorer(store, masterEngine, factory)
	_, err = restorer.Run(ctx, "") // latest
*/
package backup
