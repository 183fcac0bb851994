// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

// Package cryptostream builds the streaming cipher stages of the backup and
// restore pipelines.
//
// Encryption Algorithm:
//   - Key: scrypt(password, salt) → 32 bytes (N=16384, r=8, p=1 by default)
//   - Cipher: AES-256-CBC with PKCS#7 padding, 16-byte random IV
//   - Integrity: HMAC-SHA256 over the ciphertext, keyed with
//     HKDF-SHA256(scrypt key), stored as "mac" in metadata.json
//
// Every bundle gets a fresh salt and IV, so two backups of identical data
// never share ciphertext and one bundle's metadata reveals nothing about
// another bundle's key.
//
// Metadata File (metadata.json):
//
//	{
//	  "salt": "9f1c...",                  // 16 bytes, hex
//	  "iv": "03ab...",                    // 16 bytes, hex
//	  "timestamp": "2026-10-19T03:00:00Z", // ISO 8601, UTC
//	  "mac": "5d2e...",                   // optional, hex
//	  "kdf": {"n": 16384, "r": 8, "p": 1} // optional
//	}
//
// The metadata file is written before the first ciphertext byte and rewritten
// with the MAC when the encrypter is closed. Readers accept files without the
// optional fields; in that case only the padding check guards against a wrong
// password, and about one wrong password in 256 yields valid-looking padding
// and garbage plaintext. The restore pipeline still fails on that garbage
// when decompressing. WithRequireMAC refuses such files outright.
//
// Example Usage:
//
//	factory, err := cryptostream.NewFactory(password)
//	enc, err := factory.NewEncrypter(bundleDir, artifactFile)
//	io.Copy(enc, src)
//	enc.Close() // flushes the final block and records the MAC
//
//	dec, err := factory.NewDecrypter(bundleDir, artifactFile)
//	io.Copy(dst, dec) // returns a *CryptoError on wrong password or tampering
package cryptostream
