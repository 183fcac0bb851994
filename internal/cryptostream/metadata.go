// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package cryptostream

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// MetadataFile is the name of the per-bundle crypto metadata record.
const MetadataFile = "metadata.json"

// KDFParams are the scrypt cost parameters used for one bundle.
type KDFParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultKDFParams returns the scrypt parameters applied when none are recorded.
func DefaultKDFParams() KDFParams {
	return KDFParams{N: 16384, R: 8, P: 1}
}

func (p KDFParams) validate() error {
	if p.N < 2 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("scrypt N must be a power of two greater than 1, got %d", p.N)
	}
	if p.R < 1 || p.P < 1 {
		return fmt.Errorf("scrypt r and p must be positive, got r=%d p=%d", p.R, p.P)
	}
	return nil
}

// Metadata is the persisted key-derivation record of one bundle.
type Metadata struct {
	Salt      string     `json:"salt"`
	IV        string     `json:"iv"`
	Timestamp string     `json:"timestamp"`
	MAC       string     `json:"mac,omitempty"`
	KDF       *KDFParams `json:"kdf,omitempty"`
}

// decoded holds the binary form of Metadata.
type decoded struct {
	salt []byte
	iv   []byte
	mac  []byte
	kdf  KDFParams
}

func (m *Metadata) decode() (*decoded, error) {
	salt, err := hex.DecodeString(m.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, fmt.Errorf("%w: salt must be %d hex-encoded bytes", ErrInvalidMetadata, saltSize)
	}
	iv, err := hex.DecodeString(m.IV)
	if err != nil || len(iv) != ivSize {
		return nil, fmt.Errorf("%w: iv must be %d hex-encoded bytes", ErrInvalidMetadata, ivSize)
	}
	if _, err := time.Parse(time.RFC3339Nano, m.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidMetadata, err)
	}

	d := &decoded{salt: salt, iv: iv, kdf: DefaultKDFParams()}
	if m.MAC != "" {
		mac, err := hex.DecodeString(m.MAC)
		if err != nil || len(mac) != macSize {
			return nil, fmt.Errorf("%w: mac must be %d hex-encoded bytes", ErrInvalidMetadata, macSize)
		}
		d.mac = mac
	}
	if m.KDF != nil {
		if err := m.KDF.validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		d.kdf = *m.KDF
	}
	return d, nil
}

// ReadMetadata loads metadata.json from a bundle directory.
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside a bundle directory
	if err != nil {
		return nil, cryptoErr("read metadata", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, cryptoErr("read metadata", fmt.Errorf("%w: %v", ErrInvalidMetadata, err))
	}
	return &md, nil
}

// WriteMetadata stores metadata.json in a bundle directory.
// The file is written to a temporary name and renamed into place.
func WriteMetadata(dir string, md *Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return cryptoErr("write metadata", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return cryptoErr("write metadata", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return cryptoErr("write metadata", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return cryptoErr("write metadata", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return cryptoErr("write metadata", err)
	}
	if err := tmp.Close(); err != nil {
		return cryptoErr("write metadata", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, MetadataFile)); err != nil {
		return cryptoErr("write metadata", err)
	}
	return nil
}
