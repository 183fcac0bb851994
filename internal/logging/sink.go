// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
sink.go - Rotated Log File

Sink wraps a lumberjack.Logger, which rotates on size and prunes by count
and age. Sink adds a line limit on top: after MaxLines newline-terminated
lines it forces a rotation, so a busy collector run cannot grow one file
past what operators can comfortably grep.
*/

//nolint:staticcheck // File documentation, not package doc
package logging

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SinkConfig configures a rotated log file.
type SinkConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	MaxLines   int // 0 disables line based rotation
	Compress   bool
}

// Sink is an io.WriteCloser that rotates by size, age and line count.
// It is safe for concurrent use.
type Sink struct {
	mu       sync.Mutex
	file     *lumberjack.Logger
	maxLines int
	lines    int
}

// NewSink creates the parent directory and returns a Sink. The file itself
// is opened lazily on first write.
func NewSink(cfg SinkConfig) (*Sink, error) {
	if cfg.Path == "" {
		return nil, errors.New("log file path is required")
	}
	if cfg.MaxLines < 0 {
		return nil, fmt.Errorf("max lines must be non-negative, got %d", cfg.MaxLines)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Sink{
		file: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		maxLines: cfg.MaxLines,
	}, nil
}

// Write appends p and rotates once the line limit is reached.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.file.Write(p)
	s.lines += bytes.Count(p[:n], []byte{'\n'})
	if err != nil {
		return n, err
	}

	if s.maxLines > 0 && s.lines >= s.maxLines {
		if err := s.file.Rotate(); err != nil {
			return n, fmt.Errorf("failed to rotate log file: %w", err)
		}
		s.lines = 0
	}
	return n, nil
}

// Rotate closes the current file, moves it aside and opens a new one.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Rotate(); err != nil {
		return err
	}
	s.lines = 0
	return nil
}

// Lines returns the number of lines written since the last rotation.
func (s *Sink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Close closes the current file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
