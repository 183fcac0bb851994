// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
cbc.go - Streaming AES-CBC Stages

encryptWriter buffers at most one partial block between writes and emits
every complete block as soon as it is available. Close pads the remainder
with PKCS#7 (a full padding block when the input is block aligned, so empty
input still produces one block).

decryptReader always holds back the last complete block: only at EOF is it
known to carry the padding. The MAC covers every ciphertext byte and is
checked before the final block is unpadded.
*/

//nolint:staticcheck // File documentation, not package doc
package cryptostream

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"errors"
	"hash"
	"io"
)

const (
	blockSize = aes.BlockSize

	// readChunkSize matches io.Copy's default buffer.
	readChunkSize = 32 * 1024
)

type encryptWriter struct {
	dst     io.Writer
	mode    cipher.BlockMode
	mac     hash.Hash
	buf     []byte
	scratch []byte
	closed  bool
	onClose func(sum []byte) error
}

func (w *encryptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	w.buf = append(w.buf, p...)
	n := len(w.buf) / blockSize * blockSize
	if n == 0 {
		return len(p), nil
	}

	if err := w.emit(w.buf[:n]); err != nil {
		return 0, err
	}
	rest := copy(w.buf, w.buf[n:])
	w.buf = w.buf[:rest]
	return len(p), nil
}

func (w *encryptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	pad := blockSize - len(w.buf)%blockSize
	w.buf = append(w.buf, bytes.Repeat([]byte{byte(pad)}, pad)...)
	if err := w.emit(w.buf); err != nil {
		return err
	}
	w.buf = nil

	if w.onClose != nil {
		return w.onClose(w.mac.Sum(nil))
	}
	return nil
}

// emit encrypts whole blocks and forwards them to dst.
func (w *encryptWriter) emit(plain []byte) error {
	if cap(w.scratch) < len(plain) {
		w.scratch = make([]byte, len(plain))
	}
	out := w.scratch[:len(plain)]
	w.mode.CryptBlocks(out, plain)
	w.mac.Write(out)

	if _, err := w.dst.Write(out); err != nil {
		return err
	}
	return nil
}

type decryptReader struct {
	src     io.Reader
	mode    cipher.BlockMode
	mac     hash.Hash // nil when the metadata carries no MAC
	want    []byte
	chunk   []byte
	pending []byte
	out     []byte
	done    bool
	err     error
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.fill()
	}

	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

// fill reads one chunk and releases every complete block except the last.
func (r *decryptReader) fill() {
	n, err := r.src.Read(r.chunk)
	r.pending = append(r.pending, r.chunk[:n]...)

	if errors.Is(err, io.EOF) {
		r.finish()
		return
	}
	if err != nil {
		r.err = err
		return
	}
	if len(r.pending) <= blockSize {
		return
	}

	release := (len(r.pending) - 1) / blockSize * blockSize
	r.out = r.decrypt(r.pending[:release])
	rest := copy(r.pending, r.pending[release:])
	r.pending = r.pending[:rest]
}

// finish authenticates and unpads the held-back tail.
func (r *decryptReader) finish() {
	r.done = true

	if len(r.pending) == 0 || len(r.pending)%blockSize != 0 {
		r.err = cryptoErr("decrypt", ErrTruncated)
		return
	}

	tail := r.pending
	r.pending = nil
	if r.mac != nil {
		r.mac.Write(tail)
		if !hmac.Equal(r.mac.Sum(nil), r.want) {
			r.err = cryptoErr("decrypt", ErrAuthentication)
			return
		}
	}

	plain := make([]byte, len(tail))
	r.mode.CryptBlocks(plain, tail)

	unpadded, err := unpad(plain)
	if err != nil {
		r.err = cryptoErr("decrypt", err)
		return
	}
	r.out = unpadded
}

func (r *decryptReader) decrypt(cipherText []byte) []byte {
	if r.mac != nil {
		r.mac.Write(cipherText)
	}
	plain := make([]byte, len(cipherText))
	r.mode.CryptBlocks(plain, cipherText)
	return plain
}

// unpad strips PKCS#7 padding in constant time with respect to the pad bytes.
func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrPadding
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > blockSize {
		return nil, ErrPadding
	}

	var bad byte
	for _, c := range b[len(b)-pad:] {
		bad |= c ^ byte(pad)
	}
	if bad != 0 {
		return nil, ErrPadding
	}
	return b[:len(b)-pad], nil
}
