// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package cryptostream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	ivSize   = aes.BlockSize
	keySize  = 32
	macSize  = sha256.Size

	// macKeyInfo binds the HKDF output to the artifact MAC use case.
	macKeyInfo = "dumpvault-artifact-mac-v1"
)

// Factory builds encrypt and decrypt stages for bundle artifacts.
// It is safe for concurrent use.
type Factory struct {
	password []byte
	params   KDFParams
	random   io.Reader
	now      func() time.Time
	strict   bool
}

// Option configures a Factory.
type Option func(*Factory)

// WithKDFParams sets the scrypt cost used for new bundles.
// Existing bundles always use the parameters recorded in their metadata.
func WithKDFParams(p KDFParams) Option {
	return func(f *Factory) {
		f.params = p
	}
}

// WithRequireMAC makes NewDecrypter refuse metadata without a "mac" field.
// Without it, such bundles are checked by PKCS#7 padding alone, which lets
// roughly one wrong password in 256 through as garbage plaintext.
func WithRequireMAC() Option {
	return func(f *Factory) {
		f.strict = true
	}
}

// WithRandom overrides the source of salts and IVs.
func WithRandom(r io.Reader) Option {
	return func(f *Factory) {
		f.random = r
	}
}

// WithClock overrides the time source for the metadata timestamp.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory creates a Factory for the given password.
func NewFactory(password string, opts ...Option) (*Factory, error) {
	if password == "" {
		return nil, cryptoErr("configure", ErrEmptyPassword)
	}

	f := &Factory{
		password: []byte(password),
		params:   DefaultKDFParams(),
		random:   rand.Reader,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.params.validate(); err != nil {
		return nil, cryptoErr("configure", err)
	}
	return f, nil
}

// NewEncrypter writes fresh metadata into dir and returns a writer that
// encrypts into dst. Close flushes the padded final block and records the
// MAC; it does not close dst.
func (f *Factory) NewEncrypter(dir string, dst io.Writer) (io.WriteCloser, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(f.random, salt); err != nil {
		return nil, cryptoErr("generate salt", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(f.random, iv); err != nil {
		return nil, cryptoErr("generate iv", err)
	}

	encKey, macKey, err := f.deriveKeys(salt, f.params)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, cryptoErr("create cipher", err)
	}

	params := f.params
	md := &Metadata{
		Salt:      hex.EncodeToString(salt),
		IV:        hex.EncodeToString(iv),
		Timestamp: f.now().UTC().Format(time.RFC3339Nano),
		KDF:       &params,
	}
	if err := WriteMetadata(dir, md); err != nil {
		return nil, err
	}

	return &encryptWriter{
		dst:  dst,
		mode: cipher.NewCBCEncrypter(block, iv),
		mac:  hmac.New(sha256.New, macKey),
		onClose: func(sum []byte) error {
			md.MAC = hex.EncodeToString(sum)
			return WriteMetadata(dir, md)
		},
	}, nil
}

// NewDecrypter reads the metadata in dir and returns a reader yielding the
// plaintext of src. Authentication and padding are checked when src is
// exhausted; failures surface from Read as a *CryptoError.
func (f *Factory) NewDecrypter(dir string, src io.Reader) (io.Reader, error) {
	md, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	d, err := md.decode()
	if err != nil {
		return nil, cryptoErr("read metadata", err)
	}
	if d.mac == nil && f.strict {
		return nil, cryptoErr("read metadata", ErrMissingMAC)
	}

	encKey, macKey, err := f.deriveKeys(d.salt, d.kdf)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, cryptoErr("create cipher", err)
	}

	r := &decryptReader{
		src:   src,
		mode:  cipher.NewCBCDecrypter(block, d.iv),
		chunk: make([]byte, readChunkSize),
	}
	if d.mac != nil {
		r.mac = hmac.New(sha256.New, macKey)
		r.want = d.mac
	}
	return r, nil
}

// deriveKeys returns the AES key and the MAC key for a salt.
func (f *Factory) deriveKeys(salt []byte, p KDFParams) (encKey, macKey []byte, err error) {
	encKey, err = scrypt.Key(f.password, salt, p.N, p.R, p.P, keySize)
	if err != nil {
		return nil, nil, cryptoErr("derive key", err)
	}

	macKey = make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, encKey, salt, []byte(macKeyInfo)), macKey); err != nil {
		return nil, nil, cryptoErr("derive mac key", fmt.Errorf("hkdf: %w", err))
	}
	return encKey, macKey, nil
}
